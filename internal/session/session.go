package session

import (
	"sync"
	"time"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

// Session holds one conversation's history and metadata.
type Session struct {
	Key       string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any

	mu       sync.Mutex
	messages schema.Messages
}

func newSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
		messages:  schema.NewMessages(),
	}
}

// History returns a snapshot of the stored history.
func (s *Session) History() schema.Messages {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages.Clone()
}

// SetHistory replaces the stored history with the result of a turn.
func (s *Session) SetHistory(h schema.Messages) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = h.Clone()
	s.UpdatedAt = time.Now()
}

// Len returns the number of stored messages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages.Len()
}

// Clear empties the history and returns what was there.
func (s *Session) Clear() schema.Messages {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.messages
	s.messages = schema.NewMessages()
	s.UpdatedAt = time.Now()
	return old
}
