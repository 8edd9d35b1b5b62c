package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
	"github.com/thadeucbr/assistentev4-sub000/internal/config"
)

const (
	defaultBridgeURL = "ws://localhost:3001"
	reconnectDelay   = 5 * time.Second
	voicePlaceholder = "[Voice Message]"
)

var errBridgeNotConnected = errors.New("whatsapp: bridge not connected")

// bridgeEvent is one frame received from the WhatsApp bridge.
type bridgeEvent struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	Sender    string   `json:"sender"`
	PN        string   `json:"pn"`
	Content   string   `json:"content"`
	Timestamp any      `json:"timestamp"`
	IsGroup   bool     `json:"isGroup"`
	Media     []string `json:"media"`
	Status    string   `json:"status"`
	Error     string   `json:"error"`
}

// sendFrame is the outbound frame understood by the bridge.
type sendFrame struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Text    string `json:"text"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// WhatsAppChannel connects to the WhatsApp bridge via WebSocket.
type WhatsAppChannel struct {
	Base
	cfg            config.WhatsAppConfig
	reconnectDelay time.Duration

	mu        sync.Mutex // guards conn writes and connected
	conn      *websocket.Conn
	connected bool
}

func NewWhatsAppChannel(cfg config.WhatsAppConfig, b *bus.MessageBus) *WhatsAppChannel {
	return &WhatsAppChannel{
		Base:           NewBase(bus.ChannelWhatsApp, b, cfg.AllowFrom),
		cfg:            cfg,
		reconnectDelay: reconnectDelay,
	}
}

func (w *WhatsAppChannel) Name() string { return string(bus.ChannelWhatsApp) }

// Connected reports whether the bridge session is up.
func (w *WhatsAppChannel) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil && w.connected
}

// Start dials the bridge and reconnects until ctx is cancelled.
func (w *WhatsAppChannel) Start(ctx context.Context) error {
	bridgeURL := w.cfg.BridgeURL
	if bridgeURL == "" {
		bridgeURL = defaultBridgeURL
	}
	slog.Info("whatsapp: connecting to bridge", "url", bridgeURL)

	for {
		if err := w.connectOnce(ctx, bridgeURL); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("whatsapp: connection lost, reconnecting", "err", err, "delay", w.reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.reconnectDelay):
		}
	}
}

func (w *WhatsAppChannel) connectOnce(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		conn.Close()
		w.conn = nil
		w.connected = false
		w.mu.Unlock()
	}()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	slog.Info("whatsapp: connected to bridge")

	if w.cfg.BridgeToken != "" {
		if err := w.writeJSON(map[string]string{"type": "auth", "token": w.cfg.BridgeToken}); err != nil {
			return fmt.Errorf("whatsapp: auth: %w", err)
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		w.handleBridgeMessage(raw)
	}
}

func (w *WhatsAppChannel) handleBridgeMessage(raw []byte) {
	var ev bridgeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		slog.Debug("whatsapp: malformed frame", "err", err)
		return
	}
	switch ev.Type {
	case "message":
		userID := ev.PN
		if userID == "" {
			userID = ev.Sender
		}
		chatID := ev.Sender
		if chatID == "" {
			chatID = userID
		}

		content := ev.Content
		if content == voicePlaceholder {
			content = "[Voice Message: Transcription not available]"
		}

		// The bus is buffered; a full queue applies backpressure to the bridge.
		w.HandleMessage(userID, chatID, content, ev.Media, map[string]any{
			"message_id": ev.ID,
			"timestamp":  ev.Timestamp,
			"is_group":   ev.IsGroup,
		})
	case "status":
		slog.Info("whatsapp: status", "status", ev.Status)
		w.mu.Lock()
		w.connected = ev.Status == "connected"
		w.mu.Unlock()
	case "qr":
		slog.Info("whatsapp: scan QR code in the bridge terminal")
	case "error":
		slog.Error("whatsapp: bridge error", "error", ev.Error)
	}
}

// Send writes msg to the bridge, quoting msg.ReplyTo() when set.
func (w *WhatsAppChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	return w.writeJSON(sendFrame{
		Type:    "send",
		To:      msg.ChatId(),
		Text:    msg.Content(),
		ReplyTo: msg.ReplyTo(),
	})
}

func (w *WhatsAppChannel) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil || !w.connected {
		return errBridgeNotConnected
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}
