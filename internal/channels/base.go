// Package channels provides chat-platform channel implementations.
package channels

import (
	"log/slog"
	"strings"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
)

// Base holds common state and helper methods shared by all channels.
type Base struct {
	channelName bus.Channel
	b           *bus.MessageBus
	allowFrom   []string // empty = allow all
}

// NewBase creates a Base with the given channel name, bus, and allowlist.
func NewBase(name bus.Channel, b *bus.MessageBus, allowFrom []string) Base {
	return Base{channelName: name, b: b, allowFrom: allowFrom}
}

// IsAllowed checks whether senderID is on the allowlist.
// WhatsApp ids ("5511999999999@c.us") also match on the bare number.
func (b *Base) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}
	number, _, _ := strings.Cut(senderID, "@")
	for _, allowed := range b.allowFrom {
		if allowed == senderID || (number != "" && allowed == number) {
			return true
		}
	}
	return false
}

// HandleMessage verifies the sender is allowed, then pushes an InboundMessage to the bus.
func (b *Base) HandleMessage(
	senderId, chatId, content string,
	media []string,
	metadata map[string]any,
) {
	if !b.IsAllowed(senderId) {
		slog.Warn("access denied", "channel", b.channelName, "sender", senderId)
		return
	}

	msg := bus.NewInboundMessage(b.channelName, senderId, chatId, content)
	msg.SetMedia(media)
	msg.SetMetadata(metadata)
	b.b.PublishInbound(msg)
}
