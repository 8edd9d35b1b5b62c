package llmutils

import (
	"regexp"
	"strings"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Truncate shortens s to at most n bytes, adding "..." if it was cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StripThink removes <think>…</think> blocks that reasoning models embed
// in their final text.
func StripThink(s string) string {
	return strings.TrimSpace(reThink.ReplaceAllString(s, ""))
}

// StringOrDefault returns s if it's not empty, or def if s is empty.
func StringOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ToolNames lists the tool names of a batch, e.g. "generate_image, send_message".
func ToolNames(tcs []schema.ToolCall) string {
	names := make([]string, 0, len(tcs))
	for _, tc := range tcs {
		names = append(names, tc.Name)
	}
	return strings.Join(names, ", ")
}
