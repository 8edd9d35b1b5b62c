// Package dependency wires core assistente services using go.uber.org/dig.
package dependency

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/dig"

	"github.com/thadeucbr/assistentev4-sub000/internal/agent"
	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
	"github.com/thadeucbr/assistentev4-sub000/internal/channels"
	"github.com/thadeucbr/assistentev4-sub000/internal/config"
	"github.com/thadeucbr/assistentev4-sub000/internal/embeddings"
	"github.com/thadeucbr/assistentev4-sub000/internal/heartbeat"
	"github.com/thadeucbr/assistentev4-sub000/internal/mcp"
	"github.com/thadeucbr/assistentev4-sub000/internal/memory"
	"github.com/thadeucbr/assistentev4-sub000/internal/providers"
	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
	"github.com/thadeucbr/assistentev4-sub000/internal/session"
	"github.com/thadeucbr/assistentev4-sub000/internal/tools"
)

const busBufferSize = 100

// Options tune wiring for the command being run.
type Options struct {
	// DirectDelivery routes send_message in-process (local CLI).
	DirectDelivery bool
}

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg      *config.Config
	msgBus   *bus.MessageBus
	gateway  *providers.Gateway
	bridge   *mcp.Bridge
	loop     *agent.AgentLoop
	channels *channels.Manager
	monitor  *heartbeat.Monitor
	tasks    *agent.BackgroundTasks
	ltm      *memory.SQLiteStore
}

func (c *Container) Config() *config.Config        { return c.cfg }
func (c *Container) MessageBus() *bus.MessageBus   { return c.msgBus }
func (c *Container) Gateway() *providers.Gateway   { return c.gateway }
func (c *Container) Bridge() *mcp.Bridge           { return c.bridge }
func (c *Container) AgentLoop() *agent.AgentLoop   { return c.loop }
func (c *Container) Channels() *channels.Manager   { return c.channels }
func (c *Container) Monitor() *heartbeat.Monitor   { return c.monitor }
func (c *Container) Tasks() *agent.BackgroundTasks { return c.tasks }
func (c *Container) Memory() *memory.SQLiteStore   { return c.ltm }

// Close waits for background memory tasks, then closes the database.
func (c *Container) Close() error {
	c.tasks.Wait()
	return c.ltm.Close()
}

// New builds and wires all core services from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		func() *slog.Logger { return logger },
		func() Options { return opts },
		newMessageBus,
		newGateway,
		newRunner,
		newDirectSender,
		newBridge,
		newEmbedder,
		newLongTermMemory,
		newSummarizer,
		newBackgroundTasks,
		newCompactor,
		newContextBuilder,
		newOrchestrator,
		newEngine,
		newSessionManager,
		newAgentLoop,
		newChannelManager,
		newMonitor,
	}
	for _, ctor := range constructors {
		if err := d.Provide(ctor); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		msgBus *bus.MessageBus,
		gw *providers.Gateway,
		bridge *mcp.Bridge,
		loop *agent.AgentLoop,
		mgr *channels.Manager,
		monitor *heartbeat.Monitor,
		tasks *agent.BackgroundTasks,
		ltm *memory.SQLiteStore,
	) {
		result = &Container{
			cfg:      cfg,
			msgBus:   msgBus,
			gateway:  gw,
			bridge:   bridge,
			loop:     loop,
			channels: mgr,
			monitor:  monitor,
			tasks:    tasks,
			ltm:      ltm,
		}
	})
	if err != nil {
		return nil, unwrapDig(err)
	}
	return result, nil
}

// unwrapDig strips dig's constructor chain from a failed invocation.
func unwrapDig(err error) error {
	return dig.RootCause(err)
}

func newMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(busBufferSize)
}

func newGateway(cfg *config.Config) (*providers.Gateway, error) {
	primary, err := config.ProviderParams(cfg.Providers.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w (edit %s)", err, config.ConfigPath())
	}

	var secondary *providers.Route
	if cfg.Providers.Secondary.Configured() {
		p, err := config.ProviderParams(*cfg.Providers.Secondary)
		if err != nil {
			return nil, fmt.Errorf("secondary provider: %w", err)
		}
		r := providers.NewRoute(p)
		secondary = &r
	}

	settings := schema.NewAgentSettings(
		primary.DefaultModel,
		cfg.Agent.Temperature,
		cfg.Agent.MaxTokens,
		cfg.Agent.MaxCycles,
	)
	return providers.NewGateway(
		providers.NewRoute(primary),
		secondary,
		providers.NewTokenLimits(cfg.Providers.TokenLimits),
		settings.ChatOptions(),
	), nil
}

func newRunner(cfg *config.Config, logger *slog.Logger) mcp.Runner {
	bc := cfg.Bridge
	return mcp.NewStdioRunner(mcp.StdioConfig{
		Command:          bc.Command,
		Args:             bc.Args,
		Env:              envList(bc.Env),
		Timeout:          time.Duration(bc.TimeoutSeconds) * time.Second,
		Handshake:        bc.Handshake,
		MaxResponseBytes: bc.MaxResponseBytes,
		Logger:           logger,
	})
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func deliverTool(cfg *config.Config) string {
	if len(cfg.Bridge.DeliverTools) > 0 {
		return cfg.Bridge.DeliverTools[0]
	}
	return agent.DefaultDeliverTool
}

func newDirectSender(cfg *config.Config, b *bus.MessageBus) *tools.DirectSender {
	return tools.NewDirectSender(deliverTool(cfg), b)
}

// ToolBridge builds a standalone bridge for commands that only talk to the
// tool host.
func ToolBridge(cfg *config.Config, logger *slog.Logger) *mcp.Bridge {
	return newBridge(newRunner(cfg, logger), cfg, Options{}, nil, logger)
}

func newBridge(runner mcp.Runner, cfg *config.Config, opts Options, direct *tools.DirectSender, logger *slog.Logger) *mcp.Bridge {
	bc := cfg.Bridge
	bcfg := mcp.BridgeConfig{
		MaxAttempts:    bc.MaxAttempts,
		Backoff:        time.Duration(bc.BackoffMs) * time.Millisecond,
		BypassBytes:    bc.BypassBytes,
		DeliverTools:   bc.DeliverTools,
		DirectDelivery: opts.DirectDelivery,
		DedupeTools:    cfg.LoopGuard.Tools,
		Logger:         logger,
	}
	if direct == nil {
		return mcp.NewBridge(runner, bcfg)
	}
	return mcp.NewBridge(runner, bcfg, direct)
}

func newEmbedder(cfg *config.Config) embeddings.Embedder {
	return embeddings.New(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		Timeout: time.Duration(cfg.Embeddings.TimeoutSeconds) * time.Second,
	})
}

func newLongTermMemory(cfg *config.Config) (*memory.SQLiteStore, error) {
	path := cfg.MemoryDBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return memory.NewSQLiteStore(path)
}

func newSummarizer(gw *providers.Gateway) *memory.LLMSummarizer {
	return memory.NewLLMSummarizer(gw)
}

func newBackgroundTasks(cfg *config.Config, logger *slog.Logger) *agent.BackgroundTasks {
	return agent.NewBackgroundTasks(time.Duration(cfg.Memory.TaskTimeoutSeconds)*time.Second, logger)
}

func newCompactor(
	cfg *config.Config,
	embedder embeddings.Embedder,
	summarizer *memory.LLMSummarizer,
	ltm *memory.SQLiteStore,
	tasks *agent.BackgroundTasks,
	logger *slog.Logger,
) (*memory.Compactor, error) {
	return memory.NewCompactor(memory.STMConfig{
		MaxMessages:        cfg.Memory.MaxSTMMessages,
		SummarizeThreshold: cfg.Memory.SummarizeThreshold,
		MaxSummaryChars:    cfg.Memory.MaxSummaryChars,
	}, embedder, summarizer, ltm, tasks, logger)
}

func newContextBuilder(cfg *config.Config, ltm *memory.SQLiteStore) *agent.ContextBuilder {
	return agent.NewContextBuilder(cfg.WorkspacePath(), cfg.Agent.Name, ltm).
		WithMemoryLimit(cfg.Memory.RecentLimit)
}

func newOrchestrator(gw *providers.Gateway, bridge *mcp.Bridge, cfg *config.Config, logger *slog.Logger) *agent.Orchestrator {
	return agent.NewOrchestrator(gw, bridge, agent.OrchestratorConfig{
		MaxCycles:        cfg.Agent.MaxCycles,
		Lookback:         cfg.LoopGuard.Lookback,
		DeliverTool:      deliverTool(cfg),
		FallbackText:     cfg.Agent.FallbackText,
		MaxHistoryLength: cfg.Agent.MaxHistoryLength,
	}, logger)
}

func newEngine(
	orch *agent.Orchestrator,
	compactor *memory.Compactor,
	cb *agent.ContextBuilder,
	cfg *config.Config,
	logger *slog.Logger,
) *agent.Engine {
	return agent.NewEngine(orch, compactor, cb, cfg.Agent.MaxHistoryLength, logger)
}

func newSessionManager(cfg *config.Config) (*session.Manager, error) {
	return session.NewManager(cfg.WorkspacePath())
}

func newAgentLoop(
	b *bus.MessageBus,
	engine *agent.Engine,
	sessions *session.Manager,
	summarizer *memory.LLMSummarizer,
	ltm *memory.SQLiteStore,
	tasks *agent.BackgroundTasks,
) *agent.AgentLoop {
	return agent.NewAgentLoop(b, engine, sessions, summarizer, ltm, tasks)
}

func newChannelManager(cfg *config.Config, b *bus.MessageBus) *channels.Manager {
	return channels.NewManager(cfg.Channels, b)
}

func newMonitor(bridge *mcp.Bridge, cfg *config.Config, logger *slog.Logger) *heartbeat.Monitor {
	return heartbeat.NewMonitor(bridge, cfg.Health.Schedule, logger)
}
