package providers

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitBreakerTripped is matched (via errors.Is) by every
// *CircuitBreakerError.
var ErrCircuitBreakerTripped = errors.New("circuit breaker tripped")

// RateLimitError is returned when a provider answers HTTP 429.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration // zero when the provider did not say
	Body       string
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("%s: rate limit exceeded", e.Provider)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// StatusError is returned for any other non-200 provider response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Code, e.Body)
}

// CircuitBreakerError reports a pre-flight abort: the estimated prompt size
// exceeds the safe fraction of the model's context window. No network call
// was made.
type CircuitBreakerError struct {
	Decision CircuitBreakerDecision
}

func (e *CircuitBreakerError) Error() string {
	d := e.Decision
	return fmt.Sprintf(
		"circuit breaker: estimated token count (%d) exceeds %.0f%% of the limit for model %q (%d/%d), aborting call",
		d.EstimatedTokens, SafetyMargin*100, d.Model, d.SafeLimit, d.ModelLimit,
	)
}

func (e *CircuitBreakerError) Is(target error) bool { return target == ErrCircuitBreakerTripped }

// GatewayError aggregates the failures of every provider that was tried.
// errors.Is and errors.As reach each underlying cause.
type GatewayError struct {
	Primary   error
	Secondary error // nil when no secondary was attempted
}

func (e *GatewayError) Error() string {
	if e.Secondary == nil {
		return fmt.Sprintf("chat failed: primary: %v", e.Primary)
	}
	return fmt.Sprintf("chat failed: primary: %v; secondary: %v", e.Primary, e.Secondary)
}

func (e *GatewayError) Unwrap() []error {
	if e.Secondary == nil {
		return []error{e.Primary}
	}
	return []error{e.Primary, e.Secondary}
}

// IsRateLimit reports whether err (or anything it wraps) is a provider
// rate-limit signal.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
