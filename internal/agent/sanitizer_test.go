package agent

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

func strp(s string) *string { return &s }

func roles(h schema.Messages) []string {
	out := make([]string, 0, h.Len())
	for _, m := range h.Messages {
		out = append(out, m.Role)
	}
	return out
}

func TestSanitize_CollapsesRepeatedUserMessages(t *testing.T) {
	h := schema.NewMessages()
	h.AddUser("hi")
	h.AddUser("hi")

	got := Sanitize(h, 50)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "hi", got.Messages[0].Text())
}

func TestSanitize_KeepsNonConsecutiveDuplicates(t *testing.T) {
	h := schema.NewMessages()
	h.AddUser("hi")
	h.AddAssistant(strp("hello"), nil)
	h.AddUser("hi")

	assert.Equal(t, 3, Sanitize(h, 50).Len())
}

func TestSanitize_DropsOrphans(t *testing.T) {
	h := schema.NewMessages()
	h.AddUser("make me a picture")
	// incomplete: declares two calls, only one answered
	h.AddAssistant(nil, []schema.ToolCall{
		{ID: "a", Name: "generate_image", Arguments: "{}"},
		{ID: "b", Name: "send_message", Arguments: "{}"},
	})
	h.AddToolResult("a", "generate_image", "ok")
	// tool message without any declaring assistant
	h.AddToolResult("ghost", "lookup", "boo")
	// empty assistant
	h.AddAssistant(strp("   "), nil)
	h.AddAssistant(strp("done"), nil)

	got := Sanitize(h, 50)
	assert.Equal(t, []string{schema.RoleUser, schema.RoleAssistant}, roles(got))
	assert.Equal(t, "done", got.Messages[1].Text())
}

func TestSanitize_ExactlyOneResultPerCall(t *testing.T) {
	h := schema.NewMessages()
	h.AddUser("q")
	h.AddAssistant(nil, []schema.ToolCall{{ID: "x", Name: "lookup", Arguments: "{}"}})
	h.AddToolResult("x", "lookup", "first")
	h.AddToolResult("x", "lookup", "second")
	// reuses an id that is already answered
	h.AddAssistant(nil, []schema.ToolCall{{ID: "x", Name: "lookup", Arguments: "{}"}})
	h.AddAssistant(strp("answer"), nil)

	got := Sanitize(h, 50)
	require.Equal(t, []string{schema.RoleUser, schema.RoleAssistant, schema.RoleTool, schema.RoleAssistant}, roles(got))
	assert.Equal(t, "first", got.Messages[2].Text())
}

func TestSanitize_RepeatedIDWithinOneMessage(t *testing.T) {
	h := schema.NewMessages()
	h.AddUser("q")
	h.AddAssistant(nil, []schema.ToolCall{
		{ID: "x", Name: "lookup", Arguments: "{}"},
		{ID: "x", Name: "lookup", Arguments: "{}"},
	})
	h.AddToolResult("x", "lookup", "r1")
	h.AddToolResult("x", "lookup", "r2")

	assert.Equal(t, []string{schema.RoleUser}, roles(Sanitize(h, 50)))
}

func TestSanitize_BoundKeepsSystemMessage(t *testing.T) {
	h := schema.NewMessages()
	h.AddSystem("persona")
	for i := 0; i < 20; i++ {
		h.AddUser(fmt.Sprintf("m%d", i))
	}

	got := Sanitize(h, 5)
	require.Equal(t, 6, got.Len())
	assert.Equal(t, schema.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "m15", got.Messages[1].Text())
	assert.Equal(t, "m19", got.Messages[5].Text())
}

func TestSanitize_BoundCutOrphansToolResult(t *testing.T) {
	h := schema.NewMessages()
	h.AddAssistant(nil, []schema.ToolCall{{ID: "c", Name: "lookup", Arguments: "{}"}})
	h.AddToolResult("c", "lookup", "r")
	h.AddAssistant(strp("a"), nil)
	h.AddUser("u")

	got := Sanitize(h, 3)
	assert.Equal(t, []string{schema.RoleAssistant, schema.RoleUser}, roles(got))
}

func TestSanitize_DedupAfterPairingRemovesAssistant(t *testing.T) {
	h := schema.NewMessages()
	h.AddUser("hi")
	h.AddAssistant(nil, []schema.ToolCall{{ID: "lost", Name: "lookup", Arguments: "{}"}})
	h.AddUser("hi")

	got := Sanitize(h, 50)
	assert.Equal(t, []string{schema.RoleUser}, roles(got))
}

func TestSanitize_Idempotent(t *testing.T) {
	histories := map[string]schema.Messages{}

	mixed := schema.NewMessages()
	mixed.AddSystem("sys")
	for i := 0; i < 12; i++ {
		mixed.AddUser("same")
		mixed.AddAssistant(nil, []schema.ToolCall{{ID: fmt.Sprintf("c%d", i), Name: "lookup", Arguments: "{}"}})
		if i%3 != 0 {
			mixed.AddToolResult(fmt.Sprintf("c%d", i), "lookup", "r")
		}
		if i%4 == 0 {
			mixed.AddToolResult("stray", "lookup", "r")
		}
	}
	histories["mixed"] = mixed

	histories["empty"] = schema.NewMessages()

	structured := schema.NewMessages()
	structured.AddUser([]schema.ContentBlock{{Type: "text", Text: "a"}})
	structured.AddUser([]schema.ContentBlock{{Type: "text", Text: "a"}})
	structured.AddAssistant(strp("ok"), nil)
	histories["structured"] = structured

	for name, h := range histories {
		for _, maxLen := range []int{3, 7, 50} {
			t.Run(fmt.Sprintf("%s/%d", name, maxLen), func(t *testing.T) {
				once := Sanitize(h, maxLen)
				twice := Sanitize(once, maxLen)
				assert.Empty(t, cmp.Diff(once, twice))
			})
		}
	}
}

func TestSanitize_DoesNotModifyInput(t *testing.T) {
	h := schema.NewMessages()
	h.AddUser("hi")
	h.AddUser("hi")
	snapshot := h.Clone()

	_ = Sanitize(h, 50)
	assert.Empty(t, cmp.Diff(snapshot, h))
}
