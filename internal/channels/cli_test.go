package channels

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
	"github.com/thadeucbr/assistentev4-sub000/internal/config"
)

// syncBuffer is a bytes.Buffer safe for concurrent reads in assertions.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestCLI_ReplLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := bus.NewMessageBus(4)
	var out syncBuffer
	cli := NewCLIChannel(b, strings.NewReader("hello\n\nexit\n"), &out)

	// Echo agent.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agentDone := make(chan struct{})
	go func() {
		defer close(agentDone)
		select {
		case in := <-b.InboundChan():
			assert.Equal(t, bus.ChannelCLI, in.Channel())
			assert.Equal(t, CLIChatID, in.ChatId())
			assert.NoError(t, cli.Send(ctx, bus.NewOutboundMessage(bus.ChannelCLI, in.ChatId(), "echo: "+in.Content())))
		case <-ctx.Done():
		}
	}()

	require.NoError(t, cli.Start(ctx))
	<-agentDone

	got := out.String()
	assert.Contains(t, got, "echo: hello")
	assert.Contains(t, got, "Goodbye!")
}

func TestCLI_StopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	cli := NewCLIChannel(bus.NewMessageBus(1), pr, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cli.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}
}

func TestManager_DispatchRoutesByChannel(t *testing.T) {
	b := bus.NewMessageBus(4)
	var out syncBuffer
	cli := NewCLIChannel(b, strings.NewReader(""), &out)

	m := NewManager(config.ChannelsConfig{}, b, cli)
	assert.Equal(t, []string{"cli"}, m.EnabledChannels())

	m.Dispatch(context.Background(), bus.NewOutboundMessage(bus.ChannelCLI, CLIChatID, "routed"))
	m.Dispatch(context.Background(), bus.NewOutboundMessage(bus.ChannelWhatsApp, "x", "dropped"))

	assert.Contains(t, out.String(), "routed")
	assert.NotContains(t, out.String(), "dropped")
}

func TestManager_EnablesWhatsAppFromConfig(t *testing.T) {
	m := NewManager(config.ChannelsConfig{WhatsApp: config.WhatsAppConfig{Enabled: true}}, bus.NewMessageBus(1))
	assert.Equal(t, []string{"whatsapp"}, m.EnabledChannels())
}
