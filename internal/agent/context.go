package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thadeucbr/assistentev4-sub000/internal/memory"
	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

// RecentMemories is the read side of long-term memory.
type RecentMemories interface {
	Recent(ctx context.Context, userID string, limit int) ([]memory.Entry, error)
}

// ContextBuilder assembles the per-turn system prompt and user content.
type ContextBuilder struct {
	workspace   string
	assistant   string
	memories    RecentMemories
	memoryLimit int
	now         func() time.Time
}

// personaFiles are loaded from the workspace into the system prompt.
var personaFiles = []string{"PERSONA.md", "USER.md"}

// NewContextBuilder creates a ContextBuilder for the given workspace.
// memories may be nil.
func NewContextBuilder(workspace, assistantName string, memories RecentMemories) *ContextBuilder {
	if assistantName == "" {
		assistantName = "Assistente"
	}
	return &ContextBuilder{
		workspace:   expandHome(workspace),
		assistant:   assistantName,
		memories:    memories,
		memoryLimit: 5,
		now:         time.Now,
	}
}

// WithMemoryLimit sets how many recent memories the prompt includes.
func (cb *ContextBuilder) WithMemoryLimit(n int) *ContextBuilder {
	if n > 0 {
		cb.memoryLimit = n
	}
	return cb
}

// SystemPrompt builds identity + persona files + recent memories for
// userID.
func (cb *ContextBuilder) SystemPrompt(ctx context.Context, userID string) string {
	parts := []string{cb.buildIdentity()}

	if persona := cb.loadPersonaFiles(); persona != "" {
		parts = append(parts, persona)
	}
	if mem := cb.memoryContext(ctx, userID); mem != "" {
		parts = append(parts, "# Memory\n\n"+mem)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func (cb *ContextBuilder) buildIdentity() string {
	now := cb.now()
	tz, _ := now.Zone()
	if tz == "" {
		tz = "UTC"
	}

	return fmt.Sprintf(`# %s

You are %s, a helpful assistant talking to people over WhatsApp.

## Current Time
%s (%s)

To reply, call the send_message tool with your final answer. Send one message per answer.
Use other tools only when they are needed to answer. Never repeat a tool call that already succeeded.
Be accurate and concise, and answer in the user's language.`,
		cb.assistant, cb.assistant,
		now.Format("2006-01-02 15:04 (Monday)"), tz,
	)
}

func (cb *ContextBuilder) loadPersonaFiles() string {
	var parts []string
	for _, name := range personaFiles {
		data, err := os.ReadFile(filepath.Join(cb.workspace, name))
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", name, strings.TrimSpace(string(data))))
	}
	return strings.Join(parts, "\n\n")
}

func (cb *ContextBuilder) memoryContext(ctx context.Context, userID string) string {
	if cb.memories == nil || userID == "" {
		return ""
	}
	entries, err := cb.memories.Recent(ctx, userID, cb.memoryLimit)
	if err != nil {
		slog.Warn("load long-term memory", "user", userID, "err", err)
		return ""
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "- [%s] %s\n", e.CreatedAt.Format("2006-01-02"), e.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// UserContent builds the user message content, inlining images from media
// as data URLs. Non-image or unreadable files are skipped.
func UserContent(text string, media []string) any {
	if len(media) == 0 {
		return text
	}

	var blocks []schema.ContentBlock
	for _, path := range media {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if !strings.HasPrefix(mimeType, "image/") {
			continue
		}
		b64 := base64.StdEncoding.EncodeToString(data)
		blocks = append(blocks, schema.ContentBlock{
			Type:     "image_url",
			ImageURL: map[string]any{"url": fmt.Sprintf("data:%s;base64,%s", mimeType, b64)},
		})
	}

	if len(blocks) == 0 {
		return text
	}
	return append(blocks, schema.ContentBlock{Type: "text", Text: text})
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
