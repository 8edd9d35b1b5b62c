package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
	"github.com/thadeucbr/assistentev4-sub000/internal/config"
)

// fakeBridge is a websocket server standing in for the WhatsApp bridge.
type fakeBridge struct {
	srv      *httptest.Server
	conns    chan *websocket.Conn
	received chan map[string]string
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()
	fb := &fakeBridge{
		conns:    make(chan *websocket.Conn, 1),
		received: make(chan map[string]string, 8),
	}
	upgrader := websocket.Upgrader{}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fb.conns <- conn
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame map[string]string
			if json.Unmarshal(raw, &frame) == nil {
				fb.received <- frame
			}
		}
	}))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBridge) url() string {
	return "ws" + strings.TrimPrefix(fb.srv.URL, "http")
}

func (fb *fakeBridge) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-fb.conns:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("bridge never received a connection")
		return nil
	}
}

func (fb *fakeBridge) next(t *testing.T) map[string]string {
	t.Helper()
	select {
	case f := <-fb.received:
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func startWhatsApp(t *testing.T, cfg config.WhatsAppConfig, b *bus.MessageBus) *WhatsAppChannel {
	t.Helper()
	ch := NewWhatsAppChannel(cfg, b)
	ch.reconnectDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ch
}

func TestWhatsApp_InboundAndReply(t *testing.T) {
	fb := newFakeBridge(t)
	b := bus.NewMessageBus(4)
	ch := startWhatsApp(t, config.WhatsAppConfig{BridgeURL: fb.url(), BridgeToken: "secret"}, b)

	conn := fb.accept(t)
	auth := fb.next(t)
	assert.Equal(t, map[string]string{"type": "auth", "token": "secret"}, auth)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    "message",
		"id":      "MSG1",
		"sender":  "5511999@c.us",
		"content": "send me a cat",
	}))

	select {
	case in := <-b.InboundChan():
		assert.Equal(t, bus.ChannelWhatsApp, in.Channel())
		assert.Equal(t, "5511999@c.us", in.SenderId())
		assert.Equal(t, "5511999@c.us", in.ChatId())
		assert.Equal(t, "send me a cat", in.Content())
		assert.Equal(t, "MSG1", in.MessageId())
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound message")
	}

	require.Eventually(t, ch.Connected, 5*time.Second, 10*time.Millisecond)
	out := bus.NewOutboundMessage(bus.ChannelWhatsApp, "5511999@c.us", "here you go")
	out.SetReplyTo("MSG1")
	require.NoError(t, ch.Send(context.Background(), out))

	assert.Equal(t, map[string]string{
		"type":    "send",
		"to":      "5511999@c.us",
		"text":    "here you go",
		"replyTo": "MSG1",
	}, fb.next(t))
}

func TestWhatsApp_AllowList(t *testing.T) {
	fb := newFakeBridge(t)
	b := bus.NewMessageBus(4)
	startWhatsApp(t, config.WhatsAppConfig{BridgeURL: fb.url(), AllowFrom: []string{"5511000"}}, b)

	conn := fb.accept(t)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "id": "1", "sender": "5511999@c.us", "content": "blocked"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "id": "2", "sender": "5511000@c.us", "content": "allowed"}))

	select {
	case in := <-b.InboundChan():
		assert.Equal(t, "allowed", in.Content())
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound message")
	}
	assert.Equal(t, 0, b.InboundSize())
}

func TestWhatsApp_SendWhileDisconnected(t *testing.T) {
	ch := NewWhatsAppChannel(config.WhatsAppConfig{}, bus.NewMessageBus(1))
	err := ch.Send(context.Background(), bus.NewOutboundMessage(bus.ChannelWhatsApp, "x", "y"))
	assert.ErrorIs(t, err, errBridgeNotConnected)
}

func TestWhatsApp_StatusFrameTogglesConnected(t *testing.T) {
	fb := newFakeBridge(t)
	ch := startWhatsApp(t, config.WhatsAppConfig{BridgeURL: fb.url()}, bus.NewMessageBus(1))

	conn := fb.accept(t)
	require.Eventually(t, ch.Connected, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "status", "status": "disconnected"}))
	require.Eventually(t, func() bool { return !ch.Connected() }, 5*time.Second, 10*time.Millisecond)
}

func TestBase_IsAllowed(t *testing.T) {
	open := NewBase(bus.ChannelWhatsApp, nil, nil)
	assert.True(t, open.IsAllowed("anyone@c.us"))

	b := NewBase(bus.ChannelWhatsApp, nil, []string{"5511999", "group@g.us"})
	assert.True(t, b.IsAllowed("5511999@c.us"))
	assert.True(t, b.IsAllowed("group@g.us"))
	assert.False(t, b.IsAllowed("5511000@c.us"))
}
