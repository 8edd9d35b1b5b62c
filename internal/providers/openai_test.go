package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

func TestOpenAIProvider_ParsesToolCalls(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"content": null,
					"tool_calls": [{"id": "call_1", "function": {"name": "send_message", "arguments": "{\"content\":\"oi\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Params{ProviderName: "openai", APIKey: "sk-test", APIBase: srv.URL, DefaultModel: "gpt-4o"})

	h := schema.NewMessages()
	h.AddUser("hello")
	resp, err := p.Chat(context.Background(), h, []map[string]any{{"type": "function"}}, schema.ChatOptions{})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.Equal(t, "auto", got["tool_choice"])

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "send_message", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"content":"oi"}`, resp.ToolCalls[0].Arguments)
	assert.Nil(t, resp.Content)
	assert.Equal(t, 15, resp.Usage["total_tokens"])
}

func TestOpenAIProvider_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Params{ProviderName: "openai", APIBase: srv.URL, DefaultModel: "gpt-4o"})
	_, err := p.Chat(context.Background(), schema.NewMessages(), nil, schema.ChatOptions{})
	require.Error(t, err)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 7*time.Second, rl.RetryAfter)
	assert.True(t, IsRateLimit(err))
}

func TestOpenAIProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(Params{ProviderName: "ollama", APIBase: srv.URL, DefaultModel: "llama3"})
	_, err := p.Chat(context.Background(), schema.NewMessages(), nil, schema.ChatOptions{})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.False(t, IsRateLimit(err))
}

func TestMessageToWireMap_ToolResult(t *testing.T) {
	w := messageToWireMap(schema.NewToolResultMessage("call_9", "send_message", "ok"))
	assert.Equal(t, "tool", w["role"])
	assert.Equal(t, "call_9", w["tool_call_id"])
	assert.Equal(t, "send_message", w["name"])
}

func TestRepairJSON(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "{}"},
		{`{"a":1}`, `{"a":1}`},
		{`{"a":1}}`, `{"a":1}`},
		{`{"a":1} trailing`, `{"a":1}`},
	}
	for _, c := range cases {
		got, err := repairJSON(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	_, err := repairJSON("not json")
	assert.Error(t, err)
}
