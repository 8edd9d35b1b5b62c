package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
	"github.com/thadeucbr/assistentev4-sub000/internal/tools"
)

// DirectTool executes a tool in-process. The bridge routes a delivery call
// to its DirectTool when the request is too large for the tool host.
type DirectTool interface {
	Name() string
	Call(ctx context.Context, args map[string]any) (string, error)
}

// BridgeConfig tunes retry, bypass and loop-guard behavior.
type BridgeConfig struct {
	// MaxAttempts per call, first try included. Zero means 2.
	MaxAttempts int

	// Backoff is multiplied by the attempt number between tries. Zero
	// means one second.
	Backoff time.Duration

	// BypassBytes is the encoded size above which a delivery call skips
	// the tool host. Zero means 50000.
	BypassBytes int

	// DeliverTools are eligible for the large-payload bypass.
	DeliverTools []string

	// DirectDelivery routes every delivery call that has a DirectTool
	// in-process, regardless of size. Used by the local CLI channel.
	DirectDelivery bool

	// DedupeTools are flagged for loop detection regardless of their
	// annotations.
	DedupeTools []string

	Logger *slog.Logger
}

// Argument names the bridge fills from the turn context when a tool
// declares them and the caller left them empty.
var (
	recipientParams = []string{"to", "recipient", "chatId"}
	replyToParams   = []string{"quotedMsgId", "replyTo", "reply_to"}
	userIDParams    = []string{"userId", "user_id"}
)

// Bridge exposes the external tool host: a cached tool registry and
// tools/call with retry, fail-fast classification and a large-payload
// bypass.
type Bridge struct {
	runner  Runner
	config  BridgeConfig
	logger  *slog.Logger
	deliver map[string]bool
	dedupe  map[string]bool
	direct  map[string]DirectTool
	sleep   func(ctx context.Context, d time.Duration) error

	mu     sync.RWMutex
	tools  []schema.ToolSpec
	byName map[string]schema.ToolSpec
}

// NewBridge creates a bridge over runner. direct tools are keyed by Name.
func NewBridge(runner Runner, cfg BridgeConfig, direct ...DirectTool) *Bridge {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.BypassBytes <= 0 {
		cfg.BypassBytes = 50000
	}
	if cfg.DeliverTools == nil {
		cfg.DeliverTools = []string{"send_message"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bridge{
		runner:  runner,
		config:  cfg,
		logger:  logger,
		deliver: toSet(cfg.DeliverTools),
		dedupe:  toSet(cfg.DedupeTools),
		direct:  make(map[string]DirectTool, len(direct)),
		sleep:   sleepCtx,
	}
	for _, d := range direct {
		b.direct[d.Name()] = d
	}
	return b
}

// ListTools returns the tool registry. The first successful tools/list is
// cached for the lifetime of the bridge; failures are not cached.
func (b *Bridge) ListTools(ctx context.Context) ([]schema.ToolSpec, error) {
	b.mu.RLock()
	cached := b.tools
	b.mu.RUnlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}

	specs, err := b.fetchTools(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.tools == nil {
		b.tools = specs
		b.byName = make(map[string]schema.ToolSpec, len(specs))
		for _, s := range specs {
			b.byName[s.Name] = s
		}
		b.logger.Info("tool registry loaded", "tools", len(specs))
	}
	out := slices.Clone(b.tools)
	b.mu.Unlock()
	return out, nil
}

// Ping issues an uncached tools/list and returns the number of tools the
// host advertises.
func (b *Bridge) Ping(ctx context.Context) (int, error) {
	specs, err := b.fetchTools(ctx)
	if err != nil {
		return 0, err
	}
	return len(specs), nil
}

type listToolsResult struct {
	Tools []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
		Annotations *struct {
			IdempotentHint *bool `json:"idempotentHint"`
		} `json:"annotations"`
	} `json:"tools"`
}

func (b *Bridge) fetchTools(ctx context.Context) ([]schema.ToolSpec, error) {
	raw, err := b.runner.Call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}

	var res listToolsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode tools/list: %w", err)
	}

	specs := make([]schema.ToolSpec, 0, len(res.Tools))
	for _, t := range res.Tools {
		if t.Name == "" {
			continue
		}
		dedupe := b.dedupe[t.Name]
		if t.Annotations != nil && t.Annotations.IdempotentHint != nil && !*t.Annotations.IdempotentHint {
			dedupe = true
		}
		specs = append(specs, schema.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			Dedupe:      dedupe,
		})
	}
	return specs, nil
}

// CallTool runs name with the raw JSON arguments produced by the model and
// returns the textual result.
func (b *Bridge) CallTool(ctx context.Context, name, argsJSON string) (string, error) {
	args, err := decodeArgs(argsJSON)
	if err != nil {
		return "", fmt.Errorf("%s: invalid arguments: %w", name, err)
	}

	if spec, ok := b.lookup(ctx, name); ok {
		injectTurn(tools.TurnCtx(ctx), spec, args)
	}

	params := map[string]any{"name": name, "arguments": args}

	if b.deliver[name] {
		if d, ok := b.direct[name]; ok {
			if b.config.DirectDelivery {
				return d.Call(ctx, args)
			}
			encoded, err := json.Marshal(params)
			if err == nil && len(encoded) > b.config.BypassBytes {
				b.logger.Info("payload over bypass threshold, delivering directly",
					"tool", name, "bytes", len(encoded), "threshold", b.config.BypassBytes)
				return d.Call(ctx, args)
			}
		}
	}

	return b.callWithRetry(ctx, name, params)
}

func (b *Bridge) callWithRetry(ctx context.Context, name string, params map[string]any) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		raw, err := b.runner.Call(ctx, "tools/call", params)
		if err == nil {
			var out string
			if out, err = parseCallResult(name, raw); err == nil {
				if attempt > 1 {
					b.logger.Info("tool succeeded after retry", "tool", name, "attempt", attempt)
				}
				return out, nil
			}
		}
		lastErr = err

		if !retryable(err) {
			b.logger.Warn("tool call failed, not retrying", "tool", name, "attempt", attempt, "err", err)
			return "", err
		}
		b.logger.Warn("tool call attempt failed",
			"tool", name, "attempt", attempt, "max_attempts", b.config.MaxAttempts, "err", err)

		if attempt < b.config.MaxAttempts {
			if err := b.sleep(ctx, time.Duration(attempt)*b.config.Backoff); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%s failed after %d attempts: %w", name, b.config.MaxAttempts, lastErr)
}

func (b *Bridge) lookup(ctx context.Context, name string) (schema.ToolSpec, bool) {
	if _, err := b.ListTools(ctx); err != nil {
		b.logger.Debug("registry unavailable, skipping argument adaptation", "tool", name, "err", err)
		return schema.ToolSpec{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	spec, ok := b.byName[name]
	return spec, ok
}

// injectTurn fills routing arguments the tool declares but the model left
// empty.
func injectTurn(tc tools.TurnContext, spec schema.ToolSpec, args map[string]any) {
	fill := func(value string, names []string) {
		if value == "" {
			return
		}
		for _, n := range names {
			if spec.DeclaresParam(n) && isBlank(args[n]) {
				args[n] = value
			}
		}
	}
	fill(tc.ChatID, recipientParams)
	fill(tc.MsgID, replyToParams)
	fill(tc.UserID, userIDParams)
}

func isBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}

func decodeArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func parseCallResult(name string, raw json.RawMessage) (string, error) {
	var res callToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return string(raw), nil
	}

	var parts []string
	for _, block := range res.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if res.IsError {
		if text == "" {
			text = "(no details)"
		}
		return "", &ToolError{Tool: name, Message: text}
	}
	if text == "" {
		if len(res.Content) > 0 {
			return string(raw), nil
		}
		return "(no output)", nil
	}
	return text, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
