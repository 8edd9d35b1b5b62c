package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
	"github.com/thadeucbr/assistentev4-sub000/internal/memory"
	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
	"github.com/thadeucbr/assistentev4-sub000/internal/session"
	"github.com/thadeucbr/assistentev4-sub000/internal/shared/llmutils"
	"github.com/thadeucbr/assistentev4-sub000/internal/tools"
)

const (
	apologyText = "Sorry, something went wrong while handling your message. Please try again in a moment."
	helpText    = "Commands:\n/new - Start a new conversation\n/help - Show available commands"
)

// AgentLoop reads InboundMessages from the bus, runs one turn per message
// and publishes replies. Turns of the same session never overlap; turns of
// different sessions run concurrently.
type AgentLoop struct {
	bus      *bus.MessageBus
	engine   *Engine
	sessions *session.Manager

	// archive summarizes a cleared session into long-term memory; both
	// may be nil.
	summarizer schema.Summarizer
	sink       schema.LongTermSink
	spawner    schema.TaskSpawner

	locks sync.Map // session key → *sync.Mutex
	wg    sync.WaitGroup
}

// NewAgentLoop creates an AgentLoop.
func NewAgentLoop(
	b *bus.MessageBus,
	engine *Engine,
	sessions *session.Manager,
	summarizer schema.Summarizer,
	sink schema.LongTermSink,
	spawner schema.TaskSpawner,
) *AgentLoop {
	return &AgentLoop{
		bus:        b,
		engine:     engine,
		sessions:   sessions,
		summarizer: summarizer,
		sink:       sink,
		spawner:    spawner,
	}
}

// Run reads from the inbound bus and processes each message in a goroutine.
// Blocks until ctx is cancelled, then waits for in-flight turns.
func (loop *AgentLoop) Run(ctx context.Context) error {
	slog.Info("Agent loop started")

	for {
		select {
		case msg := <-loop.bus.InboundChan():
			loop.wg.Add(1)
			go func() {
				defer loop.wg.Done()
				loop.handleMessage(ctx, msg)
			}()
		case <-ctx.Done():
			slog.Info("Agent loop stopping")
			loop.wg.Wait()
			return ctx.Err()
		}
	}
}

// ProcessDirect runs one turn outside the bus (CLI). It returns the reply
// text when the deliver tool was not used.
func (loop *AgentLoop) ProcessDirect(ctx context.Context, content, chatID string) (string, error) {
	msg := bus.NewInboundMessage(bus.ChannelCLI, bus.SenderIdCLI, chatID, content)
	out, err := loop.process(ctx, msg)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return out.Content(), nil
}

func (loop *AgentLoop) handleMessage(ctx context.Context, msg bus.InboundMessage) {
	out, err := loop.process(ctx, msg)
	if err != nil {
		slog.Error("turn failed", "channel", msg.Channel(), "chat", msg.ChatId(), "err", err)
		apology := loop.reply(msg, apologyText)
		out = &apology
	}
	if out != nil {
		loop.bus.PublishOutbound(*out)
	}
}

// process runs the turn under the session lock. It returns nil when
// nothing needs to be published.
func (loop *AgentLoop) process(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	key := msg.SessionKey()
	mu := loop.lock(key)
	mu.Lock()
	defer mu.Unlock()

	slog.Info("Processing message",
		"sender", msg.SenderId(),
		"channel", msg.Channel(),
		"content", llmutils.Truncate(memory.RedactBase64(msg.Content()), 80),
	)

	ses := loop.sessions.GetOrCreate(key)
	if resp := loop.handleSlashCommand(msg, ses, key); resp != nil {
		return resp, nil
	}

	ctx = tools.WithTurn(ctx, tools.TurnContext{
		Channel: msg.Channel(),
		ChatID:  msg.ChatId(),
		MsgID:   msg.MessageId(),
		UserID:  msg.SenderId(),
	})

	user := schema.NewUserMessage(UserContent(msg.Content(), msg.Media()))
	outcome, err := loop.engine.Turn(ctx, ses.History(), user)
	if outcome.History.Len() > 0 {
		ses.SetHistory(outcome.History)
		if serr := loop.sessions.Save(ses); serr != nil {
			slog.Warn("save session", "key", key, "err", serr)
		}
	}
	if err != nil {
		return nil, err
	}

	slog.Info("Turn done",
		"channel", msg.Channel(),
		"sender", msg.SenderId(),
		"cycles", outcome.Cycles,
		"delivered", outcome.Delivered,
		"fallback", outcome.FellBack,
	)

	if outcome.Delivered {
		return nil, nil
	}
	text := llmutils.StripThink(outcome.Reply)
	if text == "" {
		return nil, nil
	}
	out := loop.reply(msg, text)
	return &out, nil
}

func (loop *AgentLoop) lock(key string) *sync.Mutex {
	v, _ := loop.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (loop *AgentLoop) reply(msg bus.InboundMessage, content string) bus.OutboundMessage {
	out := bus.NewOutboundMessage(msg.Channel(), msg.ChatId(), content)
	out.SetReplyTo(msg.MessageId())
	out.SetMetadata(msg.Metadata())
	return out
}

// handleSlashCommand returns non-nil if msg was a known command.
func (loop *AgentLoop) handleSlashCommand(msg bus.InboundMessage, ses *session.Session, key string) *bus.OutboundMessage {
	switch strings.TrimSpace(strings.ToLower(msg.Content())) {
	case "/new":
		return loop.handleCmdNew(msg, ses, key)
	case "/help":
		out := loop.reply(msg, helpText)
		return &out
	}
	return nil
}

// handleCmdNew clears the session and summarizes the archived history into
// long-term memory in the background.
func (loop *AgentLoop) handleCmdNew(msg bus.InboundMessage, ses *session.Session, key string) *bus.OutboundMessage {
	archived := ses.Clear()
	if err := loop.sessions.Save(ses); err != nil {
		slog.Warn("save session", "key", key, "err", err)
	}
	loop.sessions.Invalidate(key)

	text := "New session started."
	if loop.summarizer != nil && loop.sink != nil && loop.spawner != nil && archived.Len() > 0 {
		userID := msg.SenderId()
		input := transcript(archived)
		loop.spawner.Spawn("session-archive", func(ctx context.Context) error {
			summary, err := loop.summarizer.Summarize(ctx, input)
			if err != nil {
				return fmt.Errorf("archive %s: %w", key, err)
			}
			return loop.sink.Store(ctx, userID, summary)
		})
		text += " Memory consolidation in progress."
	}

	out := loop.reply(msg, text)
	return &out
}

// transcript renders the textual user/assistant turns of h.
func transcript(h schema.Messages) string {
	var sb strings.Builder
	for _, m := range h.Messages {
		if m.Role != schema.RoleUser && m.Role != schema.RoleAssistant {
			continue
		}
		t := strings.TrimSpace(m.Text())
		if t == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, memory.RedactBase64(t))
	}
	return llmutils.Truncate(strings.TrimRight(sb.String(), "\n"), memory.MaxSummaryChars)
}
