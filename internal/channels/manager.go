package channels

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
	"github.com/thadeucbr/assistentev4-sub000/internal/config"
	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

// Manager owns all enabled channels and routes outbound messages.
type Manager struct {
	channels map[string]schema.Channel
	bus      *bus.MessageBus
}

// NewManager creates a Manager with the channels enabled in cfg plus any
// extra ones (the CLI channel in interactive mode).
func NewManager(cfg config.ChannelsConfig, b *bus.MessageBus, extra ...schema.Channel) *Manager {
	m := &Manager{
		channels: make(map[string]schema.Channel),
		bus:      b,
	}

	if cfg.WhatsApp.Enabled {
		m.Register(NewWhatsAppChannel(cfg.WhatsApp, b))
	}
	for _, ch := range extra {
		m.Register(ch)
	}
	return m
}

// Register adds ch, replacing a channel of the same name.
func (m *Manager) Register(ch schema.Channel) {
	m.channels[ch.Name()] = ch
	slog.Info("channel enabled", "name", ch.Name())
}

// EnabledChannels returns the sorted names of all enabled channels.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for n := range m.channels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StartAll starts all channels concurrently and dispatches outbound messages.
// Blocks until ctx is cancelled and every channel has returned.
func (m *Manager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.DispatchOutbound(ctx)
	}()

	for name, ch := range m.channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("starting channel", "name", name)
			if err := ch.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("channel exited with error", "name", name, "err", err)
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Dispatch routes one outbound message to its channel.
func (m *Manager) Dispatch(ctx context.Context, msg bus.OutboundMessage) {
	ch, ok := m.channels[string(msg.Channel())]
	if !ok {
		slog.Warn("unknown channel for outbound message", "channel", msg.Channel(), "chat", msg.ChatId())
		return
	}
	slog.Debug("dispatching reply", "channel", msg.Channel(), "chat", msg.ChatId(), "direct", msg.Direct())
	if err := ch.Send(ctx, msg); err != nil {
		slog.Error("send error", "channel", msg.Channel(), "chat", msg.ChatId(), "err", err)
	}
}

// DispatchOutbound routes bus replies to channels until ctx is cancelled.
func (m *Manager) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-m.bus.OutboundChan():
			m.Dispatch(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}
