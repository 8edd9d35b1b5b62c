package schema

import (
	"encoding/json"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ContentBlock is a single block in a structured message
// (e.g. an image_url block alongside a text block).
type ContentBlock struct {
	Type     string         `json:"type"` // "text" | "image_url"
	Text     string         `json:"text,omitempty"`
	ImageURL map[string]any `json:"image_url,omitempty"`
}

// ToolCall represents one function call in an assistant message.
//
// Arguments is the raw JSON text emitted by the provider. Only the tool
// bridge decodes it; everything else treats it as opaque.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToWireMap serialises a ToolCall into the OpenAI wire-format map.
func (tc ToolCall) ToWireMap() map[string]any {
	args := tc.Arguments
	if args == "" {
		args = "{}"
	}
	return map[string]any{
		"id":   tc.ID,
		"type": "function",
		"function": map[string]any{
			"name":      tc.Name,
			"arguments": args,
		},
	}
}

// Message is one entry in the conversation history.
//
// Content holds nil, a string, or []ContentBlock. ToolCalls is populated
// for assistant messages that invoke tools; ToolCallID and ToolName are
// set for tool-result messages.
type Message struct {
	Role       string
	Content    any // nil | string | []ContentBlock
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content any) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an assistant message. A nil content pointer
// leaves Content nil, which is how tool-call-only turns are represented.
func NewAssistantMessage(content *string, toolCalls []ToolCall) Message {
	m := Message{Role: RoleAssistant, ToolCalls: toolCalls}
	if content != nil {
		m.Content = *content
	}
	return m
}

func NewToolResultMessage(toolCallID, toolName, result string) Message {
	return Message{
		Role:       RoleTool,
		Content:    result,
		ToolCallID: toolCallID,
		ToolName:   toolName,
	}
}

// Text returns the textual part of the content: the string itself, or the
// text blocks of structured content joined by newlines.
func (m Message) Text() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case []ContentBlock:
		var parts []string
		for _, b := range c {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// IsText reports whether the content is a plain string.
func (m Message) IsText() bool {
	_, ok := m.Content.(string)
	return ok
}

// HasContent reports whether the message carries any non-blank content.
func (m Message) HasContent() bool {
	switch c := m.Content.(type) {
	case string:
		return strings.TrimSpace(c) != ""
	case []ContentBlock:
		return len(c) > 0
	}
	return false
}

// ContentKey returns a byte-comparable rendering of the content, used for
// exact-duplicate detection.
func (m Message) ContentKey() string {
	switch c := m.Content.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		b, _ := json.Marshal(c)
		return string(b)
	}
}

// HasToolCalls reports whether the message declares at least one tool call.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }
