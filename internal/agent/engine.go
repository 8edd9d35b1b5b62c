package agent

import (
	"context"
	"log/slog"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
	"github.com/thadeucbr/assistentev4-sub000/internal/tools"
)

// HistoryCompactor bounds the short-term history before each turn.
type HistoryCompactor interface {
	Compact(ctx context.Context, history schema.Messages, query, userID string) schema.Messages
}

// PromptSource supplies the per-turn system prompt.
type PromptSource interface {
	SystemPrompt(ctx context.Context, userID string) string
}

// Engine processes one user turn: history hygiene, context compaction,
// prompt injection and the tool cycle.
type Engine struct {
	orchestrator *Orchestrator
	compactor    HistoryCompactor
	prompt       PromptSource
	sanitizer    Sanitizer
	logger       *slog.Logger
}

// NewEngine wires an Engine. compactor and prompt may be nil.
func NewEngine(orch *Orchestrator, compactor HistoryCompactor, prompt PromptSource, maxHistoryLength int, logger *slog.Logger) *Engine {
	if maxHistoryLength <= 0 {
		maxHistoryLength = DefaultMaxHistoryLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		orchestrator: orch,
		compactor:    compactor,
		prompt:       prompt,
		sanitizer:    Sanitizer{MaxHistoryLength: maxHistoryLength},
		logger:       logger,
	}
}

// ProcessTurn appends userMessage to history, runs the turn and returns
// the extended history. The caller's slice is not modified.
func (e *Engine) ProcessTurn(ctx context.Context, history schema.Messages, userMessage schema.Message) (schema.Messages, error) {
	out, err := e.Turn(ctx, history, userMessage)
	return out.History, err
}

// Turn is ProcessTurn with the orchestrator's full outcome. The injected
// system prompt never appears in the returned history.
func (e *Engine) Turn(ctx context.Context, history schema.Messages, userMessage schema.Message) (Outcome, error) {
	userID := tools.TurnCtx(ctx).UserID

	h := history.Clone()
	h.Add(userMessage)
	h = e.sanitizer.Sanitize(h)

	if e.compactor != nil {
		h = e.compactor.Compact(ctx, h, userMessage.Text(), userID)
		h = e.sanitizer.Sanitize(h)
	}

	injected := false
	if e.prompt != nil && !hasSystemMessage(h) {
		if p := e.prompt.SystemPrompt(ctx, userID); p != "" {
			h = schema.NewMessages(append([]schema.Message{schema.NewSystemMessage(p)}, h.Messages...)...)
			injected = true
		}
	}

	e.logger.Debug("turn start", "user", userID, "history", h.Len())
	out, err := e.orchestrator.Execute(ctx, h)
	if injected && out.History.Len() > 0 {
		out.History = schema.NewMessages(out.History.Messages[1:]...)
	}
	return out, err
}

func hasSystemMessage(h schema.Messages) bool {
	for _, m := range h.Messages {
		if m.Role == schema.RoleSystem {
			return true
		}
	}
	return false
}
