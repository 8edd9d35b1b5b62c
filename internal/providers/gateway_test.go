package providers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

type fakeProvider struct {
	model string
	calls int
	reply string
	err   error
}

func (f *fakeProvider) DefaultModel() string { return f.model }

func (f *fakeProvider) Chat(_ context.Context, _ schema.Messages, _ []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	f.calls++
	if f.err != nil {
		return schema.LLMResponse{}, f.err
	}
	text := f.reply + "@" + opts.Model
	return schema.LLMResponse{Content: &text, FinishReason: "stop"}, nil
}

func bigHistory(chars int) schema.Messages {
	h := schema.NewMessages()
	h.AddUser(strings.Repeat("x", chars))
	return h
}

// ─── Token estimate ───────────────────────────────────────────────────────────

func TestEstimateTokens(t *testing.T) {
	h := schema.NewMessages()
	h.AddUser("abcdefg") // 7 chars → ceil(7/3) = 3
	assert.Equal(t, 3, EstimateTokens(h))

	h.AddAssistant(nil, []schema.ToolCall{{ID: "c1", Name: "send_message", Arguments: `{"content":"hi"}`}})
	assert.Greater(t, EstimateTokens(h), 3, "tool-call payloads count towards the estimate")
}

func TestTokenLimits_Lookup(t *testing.T) {
	l := NewTokenLimits(map[string]int{"My-Model": 1000})
	cases := []struct {
		model string
		want  int
	}{
		{"gpt-4", 8192},
		{"openai/gpt-4o", 128000},
		{"llama3:8b", 8192},
		{"ollama/qwen2.5:14b", 32768},
		{"my-model", 1000},
		{"unknown-model", 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, l.Lookup(c.model), c.model)
	}
}

// ─── Circuit breaker ─────────────────────────────────────────────────────────

func TestGateway_BreakerTripsWithoutNetworkCall(t *testing.T) {
	primary := &fakeProvider{model: "gpt-4", reply: "p"}
	g := NewGateway(Route{Name: "primary", Provider: primary}, nil, nil, schema.ChatOptions{})

	// 40 000 chars ≈ 13 334 tokens, well above 0.9 × 8192.
	_, err := g.Send(context.Background(), bigHistory(40000), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitBreakerTripped))

	var cbe *CircuitBreakerError
	require.True(t, errors.As(err, &cbe))
	assert.Equal(t, 8192, cbe.Decision.ModelLimit)
	assert.Equal(t, 7372, cbe.Decision.SafeLimit)
	assert.Equal(t, 13334, cbe.Decision.EstimatedTokens)

	assert.Zero(t, primary.calls)
}

func TestGateway_PrimaryTripFailsOverToLargerModel(t *testing.T) {
	primary := &fakeProvider{model: "llama3", reply: "local"}
	secondary := &fakeProvider{model: "gpt-4o", reply: "cloud"}
	g := NewGateway(
		Route{Name: "ollama", Provider: primary},
		&Route{Name: "openai", Provider: secondary},
		nil, schema.ChatOptions{},
	)

	// 13 334 tokens: over llama3's safe limit, well inside gpt-4o's.
	resp, err := g.Send(context.Background(), bigHistory(40000), nil)
	require.NoError(t, err)
	assert.Equal(t, "cloud@gpt-4o", resp.Text())
	assert.Zero(t, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestGateway_BothBreakersTrip(t *testing.T) {
	primary := &fakeProvider{model: "gpt-4", reply: "p"}
	secondary := &fakeProvider{model: "llama3", reply: "s"}
	g := NewGateway(Route{Provider: primary}, &Route{Provider: secondary}, nil, schema.ChatOptions{})

	_, err := g.Send(context.Background(), bigHistory(40000), nil)
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.True(t, errors.Is(ge.Primary, ErrCircuitBreakerTripped))
	assert.True(t, errors.Is(ge.Secondary, ErrCircuitBreakerTripped))
	assert.Zero(t, primary.calls)
	assert.Zero(t, secondary.calls)
}

func TestGateway_UnknownModelSkipsBreaker(t *testing.T) {
	primary := &fakeProvider{model: "mystery-model", reply: "ok"}
	g := NewGateway(Route{Provider: primary}, nil, nil, schema.ChatOptions{})

	resp, err := g.Send(context.Background(), bigHistory(1_000_000), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok@mystery-model", resp.Text())
	assert.Equal(t, 1, primary.calls)
}

// ─── Failover ────────────────────────────────────────────────────────────────

func TestGateway_FailoverOnRateLimit(t *testing.T) {
	primary := &fakeProvider{model: "gpt-4o", err: &RateLimitError{Provider: "openai"}}
	secondary := &fakeProvider{model: "llama3", reply: "local"}
	g := NewGateway(Route{Name: "openai", Provider: primary}, &Route{Name: "ollama", Provider: secondary}, nil, schema.ChatOptions{})

	resp, err := g.Send(context.Background(), bigHistory(10), nil)
	require.NoError(t, err)
	assert.Equal(t, "local@llama3", resp.Text())
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestGateway_SecondaryBreakerUsesItsOwnModel(t *testing.T) {
	primary := &fakeProvider{model: "gpt-4o", err: &StatusError{Provider: "openai", Code: 500}}
	secondary := &fakeProvider{model: "llama3", reply: "local"}
	g := NewGateway(Route{Provider: primary}, &Route{Provider: secondary}, nil, schema.ChatOptions{})

	// 30 000 chars = 10 000 tokens: fits gpt-4o, exceeds llama3.
	_, err := g.Send(context.Background(), bigHistory(30000), nil)
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.True(t, errors.Is(err, ErrCircuitBreakerTripped))

	var se *StatusError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
}

func TestGateway_BothFail(t *testing.T) {
	primary := &fakeProvider{model: "gpt-4o", err: &RateLimitError{Provider: "openai"}}
	secondary := &fakeProvider{model: "llama3", err: errors.New("connection refused")}
	g := NewGateway(Route{Provider: primary}, &Route{Provider: secondary}, nil, schema.ChatOptions{})

	_, err := g.Send(context.Background(), bigHistory(10), nil)
	require.Error(t, err)

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.True(t, IsRateLimit(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGateway_NoSecondary(t *testing.T) {
	primary := &fakeProvider{model: "gpt-4o", err: errors.New("boom")}
	g := NewGateway(Route{Provider: primary}, nil, nil, schema.ChatOptions{})

	_, err := g.Send(context.Background(), bigHistory(10), nil)
	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Nil(t, ge.Secondary)
}
