package providers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

// Route pairs a provider with the model it should be asked for.
type Route struct {
	Name     string
	Provider schema.LLMProvider
	Model    string
}

func (r Route) model() string {
	if r.Model != "" {
		return r.Model
	}
	return r.Provider.DefaultModel()
}

// Gateway sends chat requests to a primary provider and fails over to an
// optional secondary. Every attempt is preceded by a token circuit breaker
// check against the target model's context window.
type Gateway struct {
	primary   Route
	secondary *Route
	limits    TokenLimits
	opts      schema.ChatOptions
}

// NewGateway builds a gateway. secondary may be nil.
func NewGateway(primary Route, secondary *Route, limits TokenLimits, opts schema.ChatOptions) *Gateway {
	if limits == nil {
		limits = NewTokenLimits(nil)
	}
	return &Gateway{primary: primary, secondary: secondary, limits: limits, opts: opts}
}

// PrimaryModel returns the model the primary route targets.
func (g *Gateway) PrimaryModel() string { return g.primary.model() }

// Send runs the breaker for the primary route and calls it. Any primary
// failure, a tripped breaker included, is retried once on the secondary
// after a breaker check against the secondary's own limit. When both fail
// the result is a *GatewayError carrying both causes.
func (g *Gateway) Send(ctx context.Context, history schema.Messages, tools []map[string]any) (schema.LLMResponse, error) {
	resp, err := g.try(ctx, g.primary, history, tools)
	if err == nil {
		return resp, nil
	}
	if g.secondary == nil {
		return schema.LLMResponse{}, &GatewayError{Primary: err}
	}

	slog.Warn("gateway: primary failed, trying secondary",
		"primary", g.primary.Name,
		"secondary", g.secondary.Name,
		"rate_limited", IsRateLimit(err),
		"breaker_tripped", errors.Is(err, ErrCircuitBreakerTripped),
		"err", err,
	)

	resp, err2 := g.try(ctx, *g.secondary, history, tools)
	if err2 != nil {
		return schema.LLMResponse{}, &GatewayError{Primary: err, Secondary: err2}
	}
	return resp, nil
}

func (g *Gateway) try(ctx context.Context, r Route, history schema.Messages, tools []map[string]any) (schema.LLMResponse, error) {
	model := r.model()

	d := g.limits.Check(history, model)
	switch {
	case !d.Known():
		slog.Warn("gateway: no token limit for model, skipping circuit breaker", "model", model)
	case d.Tripped:
		slog.Error("gateway: circuit breaker tripped",
			"model", model,
			"estimated_tokens", d.EstimatedTokens,
			"safe_limit", d.SafeLimit,
			"model_limit", d.ModelLimit,
		)
		return schema.LLMResponse{}, &CircuitBreakerError{Decision: d}
	default:
		slog.Debug("gateway: circuit breaker ok",
			"model", model,
			"estimated_tokens", d.EstimatedTokens,
			"safe_limit", d.SafeLimit,
		)
	}

	opts := g.opts
	opts.Model = model
	return r.Provider.Chat(ctx, history, tools, opts)
}
