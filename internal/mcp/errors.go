package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTimeout is returned when the tool host does not answer within the
	// per-call deadline. The subprocess is killed.
	ErrTimeout = errors.New("tool host timed out")

	// ErrNoResponse is returned when the tool host exits cleanly without
	// ever emitting a response carrying the request id.
	ErrNoResponse = errors.New("tool host produced no matching response")

	// ErrPayloadTooLarge is returned when a request or response exceeds what
	// the transport can carry.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ToolError is a failure reported by the tool itself (isError: true).
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// ExitError is returned when the tool host exits non-zero without a
// matching response. Stderr holds the tail of its error output.
type ExitError struct {
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("tool host exited: %v", e.Err)
	}
	return fmt.Sprintf("tool host exited: %v: %s", e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

var payloadPatterns = []string{
	"e2big",
	"argument list too long",
	"maxbuffer",
	"payload too large",
	"buffer overflow",
}

// IsPayloadTooLarge reports whether err belongs to the payload-too-large
// class, by sentinel or by message.
func IsPayloadTooLarge(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPayloadTooLarge) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range payloadPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTimeout reports whether err belongs to the timeout class.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

// retryable reports whether a failed attempt may be repeated. Timeouts,
// oversized payloads, tool-reported failures and caller cancellation are
// final.
func retryable(err error) bool {
	var te *ToolError
	switch {
	case errors.As(err, &te):
		return false
	case errors.Is(err, context.Canceled):
		return false
	case IsTimeout(err), IsPayloadTooLarge(err):
		return false
	}
	return true
}
