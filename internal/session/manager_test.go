package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

func sampleHistory() schema.Messages {
	reply := "here is your cat"
	h := schema.NewMessages()
	h.AddUser("send me a cat photo")
	h.AddUser([]schema.ContentBlock{
		{Type: "image_url", ImageURL: map[string]any{"url": "data:image/png;base64,AAAA"}},
		{Type: "text", Text: "like this one"},
	})
	h.AddAssistant(nil, []schema.ToolCall{{ID: "c1", Name: "send_message", Arguments: `{"content":"here is your cat"}`}})
	h.AddToolResult("c1", "send_message", "sent")
	h.AddAssistant(&reply, nil)
	return h
}

func TestManager_SaveAndReload(t *testing.T) {
	ws := t.TempDir()
	m, err := NewManager(ws)
	require.NoError(t, err)

	s := m.GetOrCreate("whatsapp:5511999@c.us")
	s.SetHistory(sampleHistory())
	require.NoError(t, m.Save(s))

	_, err = os.Stat(filepath.Join(ws, "sessions", "whatsapp_5511999_c.us.jsonl"))
	require.NoError(t, err)

	fresh, err := NewManager(ws)
	require.NoError(t, err)
	got := fresh.GetOrCreate("whatsapp:5511999@c.us")
	assert.Empty(t, cmp.Diff(sampleHistory(), got.History()))
}

func TestManager_CacheAndInvalidate(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	a := m.GetOrCreate("cli:direct")
	assert.Same(t, a, m.GetOrCreate("cli:direct"))

	m.Invalidate("cli:direct")
	assert.NotSame(t, a, m.GetOrCreate("cli:direct"))
}

func TestSession_Clear(t *testing.T) {
	s := newSession("k")
	s.SetHistory(sampleHistory())

	old := s.Clear()
	assert.Equal(t, 5, old.Len())
	assert.Zero(t, s.Len())
}

func TestSession_HistoryIsSnapshot(t *testing.T) {
	s := newSession("k")
	s.SetHistory(sampleHistory())

	h := s.History()
	h.AddUser("extra")
	assert.Equal(t, 5, s.Len())
}

func TestManager_ListSessions(t *testing.T) {
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"whatsapp:a", "whatsapp:b"} {
		s := m.GetOrCreate(key)
		s.SetHistory(sampleHistory())
		require.NoError(t, m.Save(s))
	}

	infos := m.ListSessions()
	require.Len(t, infos, 2)
	keys := []string{infos[0].Key, infos[1].Key}
	assert.ElementsMatch(t, []string{"whatsapp:a", "whatsapp:b"}, keys)
}

func TestManager_SkipsMalformedLines(t *testing.T) {
	ws := t.TempDir()
	m, err := NewManager(ws)
	require.NoError(t, err)

	content := `{"_type":"metadata","key":"cli:x","created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z","metadata":{}}
not json
{"role":"user","content":"hello"}
`
	require.NoError(t, os.WriteFile(filepath.Join(ws, "sessions", "cli_x.jsonl"), []byte(content), 0o644))

	s := m.GetOrCreate("cli:x")
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "hello", s.History().Messages[0].Text())
}
