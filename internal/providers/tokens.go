package providers

import (
	"encoding/json"
	"strings"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

// SafetyMargin is the fraction of a model's context window a request may
// use before the circuit breaker trips.
const SafetyMargin = 0.9

// charsPerToken is deliberately low so the estimate errs high.
const charsPerToken = 3

// DefaultTokenLimits maps model identifiers to their context window.
var DefaultTokenLimits = map[string]int{
	"gpt-4-turbo":            128000,
	"gpt-4-turbo-2024-04-09": 128000,
	"gpt-4-0125-preview":     128000,
	"gpt-4-turbo-preview":    128000,
	"gpt-4-1106-preview":     128000,
	"gpt-4-vision-preview":   128000,
	"gpt-4":                  8192,
	"gpt-4-0613":             8192,
	"gpt-4-32k":              32768,
	"gpt-4-32k-0613":         32768,
	"gpt-4o":                 128000,
	"gpt-4o-mini":            128000,
	"gpt-4.1":                128000,
	"gpt-4.1-mini":           128000,
	"gpt-3.5-turbo":          16385,
	"gpt-3.5-turbo-0125":     16385,
	"gpt-3.5-turbo-1106":     16385,
	"gpt-3.5-turbo-instruct": 4096,
	"gpt-5-mini":             128000,
	"gpt-5-mini-2025-08-07":  128000,
	"llama3":                 8192,
	"codellama":              16000,
	"mistral":                8192,
	"gemma":                  8192,
	"qwen2.5":                32768,
}

// CircuitBreakerDecision is computed fresh before every provider call.
type CircuitBreakerDecision struct {
	Model           string
	EstimatedTokens int
	ModelLimit      int // 0 when the model is unknown
	SafeLimit       int
	Tripped         bool
}

// Known reports whether a limit was found for the model.
func (d CircuitBreakerDecision) Known() bool { return d.ModelLimit > 0 }

// TokenLimits resolves a model's context window. Lookups try the exact
// name, the name without a "provider/" prefix, and the name without an
// Ollama ":tag" suffix.
type TokenLimits map[string]int

// NewTokenLimits merges overrides on top of DefaultTokenLimits.
func NewTokenLimits(overrides map[string]int) TokenLimits {
	out := make(TokenLimits, len(DefaultTokenLimits)+len(overrides))
	for k, v := range DefaultTokenLimits {
		out[k] = v
	}
	for k, v := range overrides {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Lookup returns the limit for model, or 0.
func (l TokenLimits) Lookup(model string) int {
	m := strings.ToLower(strings.TrimSpace(model))
	if v, ok := l[m]; ok {
		return v
	}
	if _, rest, ok := strings.Cut(m, "/"); ok {
		m = rest
		if v, ok := l[m]; ok {
			return v
		}
	}
	if base, _, ok := strings.Cut(m, ":"); ok {
		if v, ok := l[base]; ok {
			return v
		}
	}
	return 0
}

// Check estimates the token count of messages and compares it with the
// safe limit for model.
func (l TokenLimits) Check(messages schema.Messages, model string) CircuitBreakerDecision {
	d := CircuitBreakerDecision{
		Model:           model,
		EstimatedTokens: EstimateTokens(messages),
		ModelLimit:      l.Lookup(model),
	}
	if d.ModelLimit > 0 {
		d.SafeLimit = int(float64(d.ModelLimit) * SafetyMargin)
		d.Tripped = d.EstimatedTokens > d.SafeLimit
	}
	return d
}

// EstimateTokens approximates the token count of a message list: text
// length plus the JSON length of structured content and tool-call
// payloads, divided by charsPerToken and rounded up.
func EstimateTokens(messages schema.Messages) int {
	total := 0
	for _, m := range messages.Messages {
		switch c := m.Content.(type) {
		case nil:
		case string:
			total += len(c)
		default:
			if b, err := json.Marshal(c); err == nil {
				total += len(b)
			}
		}
		if len(m.ToolCalls) > 0 {
			wire := make([]map[string]any, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				wire[i] = tc.ToWireMap()
			}
			if b, err := json.Marshal(wire); err == nil {
				total += len(b)
			}
		}
	}
	return (total + charsPerToken - 1) / charsPerToken
}
