package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
	"github.com/thadeucbr/assistentev4-sub000/internal/shared/llmutils"
	"github.com/thadeucbr/assistentev4-sub000/internal/shared/logutils"
)

const (
	DefaultMaxCycles    = 3
	DefaultLookback     = 6
	DefaultDeliverTool  = "send_message"
	DefaultFallbackText = "Sorry, I couldn't fulfill your request right now."

	duplicateSkipped = "Duplicate call skipped: an identical call was already made recently. Use its earlier result."

	fallbackInstruction = "You could not finish the user's request within the allowed number of steps. " +
		"Write one short, friendly message for the user apologizing and saying the request could not be completed right now. " +
		"Reply with the message text only."
)

// ChatSender is the provider gateway as seen by the orchestrator.
type ChatSender interface {
	Send(ctx context.Context, history schema.Messages, tools []map[string]any) (schema.LLMResponse, error)
}

// ToolExecutor is the tool bridge as seen by the orchestrator.
type ToolExecutor interface {
	ListTools(ctx context.Context) ([]schema.ToolSpec, error)
	CallTool(ctx context.Context, name, argsJSON string) (string, error)
}

// OrchestratorConfig bounds the tool cycle.
type OrchestratorConfig struct {
	MaxCycles int
	// Lookback is how many trailing history messages loop detection
	// searches for an identical earlier call.
	Lookback int
	// DeliverTool ends the turn once it succeeds.
	DeliverTool string
	// DeliverContentParam is the argument the fallback message goes in.
	DeliverContentParam string
	// FallbackWindow is how much recent history the fallback apology sees.
	FallbackWindow   int
	FallbackText     string
	MaxHistoryLength int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.MaxCycles <= 0 {
		c.MaxCycles = DefaultMaxCycles
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	if c.DeliverTool == "" {
		c.DeliverTool = DefaultDeliverTool
	}
	if c.DeliverContentParam == "" {
		c.DeliverContentParam = "content"
	}
	if c.FallbackWindow <= 0 {
		c.FallbackWindow = 10
	}
	if c.FallbackText == "" {
		c.FallbackText = DefaultFallbackText
	}
	if c.MaxHistoryLength <= 0 {
		c.MaxHistoryLength = DefaultMaxHistoryLength
	}
}

// Outcome is the result of one orchestrated turn.
type Outcome struct {
	History schema.Messages
	// Reply is the final assistant text, or the fallback message.
	Reply string
	// Delivered is set when the deliver tool succeeded, so the reply has
	// already reached the user.
	Delivered bool
	FellBack  bool
	Cycles    int
}

// Orchestrator drives the model/tool cycle for a single turn.
type Orchestrator struct {
	chat   ChatSender
	tools  ToolExecutor
	cfg    OrchestratorConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewOrchestrator(chat ChatSender, tools ToolExecutor, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{chat: chat, tools: tools, cfg: cfg, logger: logger, now: time.Now}
}

// Run executes the turn and returns the extended history.
func (o *Orchestrator) Run(ctx context.Context, history schema.Messages) (schema.Messages, error) {
	out, err := o.Execute(ctx, history)
	return out.History, err
}

// Execute is Run with the full outcome. Gateway errors end the turn and
// are returned with the history built so far; tool errors are recorded
// as tool messages and the cycle continues.
func (o *Orchestrator) Execute(ctx context.Context, history schema.Messages) (Outcome, error) {
	h := history.Clone()

	specs, err := o.tools.ListTools(ctx)
	if err != nil {
		o.logger.Warn("tool registry unavailable, continuing without tools", "err", err)
	}
	defs := schema.Definitions(specs)
	dedupe := make(map[string]bool)
	for _, s := range specs {
		if s.Dedupe {
			dedupe[s.Name] = true
		}
	}

	for cycle := 1; cycle <= o.cfg.MaxCycles; cycle++ {
		resp, err := o.chat.Send(ctx, h, defs)
		if err != nil {
			return Outcome{History: h, Cycles: cycle}, fmt.Errorf("cycle %d: %w", cycle, err)
		}

		if !resp.HasToolCalls() {
			h.AddAssistant(resp.Content, nil)
			o.logger.Debug("turn finished without tools", "cycle", cycle)
			return Outcome{History: h, Reply: resp.Text(), Cycles: cycle}, nil
		}

		o.logger.Debug("model requested tools", "cycle", cycle, "tools", llmutils.ToolNames(resp.ToolCalls))
		seen := o.recentCalls(h, dedupe)
		h.AddAssistant(resp.Content, resp.ToolCalls)

		delivered := false
		for _, tc := range resp.ToolCalls {
			sig := callSignature(tc)
			if dedupe[tc.Name] {
				if seen[sig] {
					o.logger.Warn("loop detected, skipping duplicate tool call", "tool", tc.Name, "cycle", cycle)
					h.AddToolResult(tc.ID, tc.Name, duplicateSkipped)
					continue
				}
				seen[sig] = true
			}

			o.logger.Info("tool call", "tool", tc.Name, "cycle", cycle)
			result, err := o.tools.CallTool(ctx, tc.Name, tc.Arguments)
			if err != nil {
				o.logger.Warn("tool call failed", "tool", tc.Name, "err", err)
				h.AddToolResult(tc.ID, tc.Name, fmt.Sprintf("Error executing %s: %v", tc.Name, err))
				continue
			}
			o.logger.Log(ctx, logutils.LevelTrace, "tool result", "tool", tc.Name, "result", result)
			h.AddToolResult(tc.ID, tc.Name, result)
			if tc.Name == o.cfg.DeliverTool {
				delivered = true
			}
		}

		if delivered {
			return Outcome{History: h, Reply: resp.Text(), Delivered: true, Cycles: cycle}, nil
		}
	}

	o.logger.Warn("cycle limit reached without delivery, falling back", "max_cycles", o.cfg.MaxCycles)
	return o.fallback(ctx, h), nil
}

// recentCalls collects the signatures of dedupe-flagged calls among the
// last Lookback messages of h.
func (o *Orchestrator) recentCalls(h schema.Messages, dedupe map[string]bool) map[string]bool {
	seen := make(map[string]bool)
	for _, m := range h.Tail(o.cfg.Lookback).Messages {
		for _, tc := range m.ToolCalls {
			if dedupe[tc.Name] {
				seen[callSignature(tc)] = true
			}
		}
	}
	return seen
}

// callSignature identifies a call by name and whitespace-compacted
// arguments.
func callSignature(tc schema.ToolCall) string {
	args := strings.TrimSpace(tc.Arguments)
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(args)); err == nil {
		args = buf.String()
	}
	return tc.Name + "\x00" + args
}

// fallback asks the model, without tools, for a short apology and delivers
// it with exactly one synthesized deliver call.
func (o *Orchestrator) fallback(ctx context.Context, h schema.Messages) Outcome {
	recent := Sanitize(Sanitize(h, o.cfg.MaxHistoryLength).Tail(o.cfg.FallbackWindow), o.cfg.FallbackWindow)
	prompt := schema.NewMessages()
	prompt.AddSystem(fallbackInstruction)
	for _, m := range recent.Messages {
		if m.Role != schema.RoleSystem {
			prompt.Add(m)
		}
	}

	text := ""
	resp, err := o.chat.Send(ctx, prompt, nil)
	if err != nil {
		o.logger.Warn("fallback message generation failed, using default", "err", err)
	} else {
		text = strings.TrimSpace(resp.Text())
	}
	if text == "" {
		text = o.cfg.FallbackText
	}

	args, _ := json.Marshal(map[string]string{o.cfg.DeliverContentParam: text})
	call := schema.ToolCall{
		ID:        fmt.Sprintf("call_fallback_%d", o.now().UnixNano()),
		Name:      o.cfg.DeliverTool,
		Arguments: string(args),
	}
	h.AddAssistant(nil, []schema.ToolCall{call})

	out := Outcome{History: h, Reply: text, FellBack: true, Cycles: o.cfg.MaxCycles}
	result, err := o.tools.CallTool(ctx, call.Name, call.Arguments)
	if err != nil {
		o.logger.Error("fallback delivery failed", "err", err)
		result = fmt.Sprintf("Error executing %s: %v", call.Name, err)
	} else {
		out.Delivered = true
	}
	h.AddToolResult(call.ID, call.Name, result)
	out.History = h
	return out
}
