package tools

import (
	"context"
	"fmt"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
)

// DirectSender delivers a send_message call straight to the chat channel
// through the message bus. The tool bridge uses it in place of the external
// tool host when a request is too large to pass through the subprocess.
// Routing falls back to the TurnContext stored in ctx when the arguments
// do not name a recipient.
type DirectSender struct {
	name string
	bus  *bus.MessageBus
}

// NewDirectSender creates a DirectSender for the tool called name.
func NewDirectSender(name string, b *bus.MessageBus) *DirectSender {
	return &DirectSender{name: name, bus: b}
}

func (t *DirectSender) Name() string { return t.name }

// Call publishes the message and reports a short confirmation.
func (t *DirectSender) Call(ctx context.Context, args map[string]any) (string, error) {
	content := firstString(args, "content", "message", "text")
	if content == "" {
		return "", fmt.Errorf("%s: content is required", t.name)
	}

	tc := TurnCtx(ctx)

	chatID := firstString(args, "to", "recipient", "chatId")
	if chatID == "" {
		chatID = tc.ChatID
	}
	replyTo := firstString(args, "quotedMsgId", "replyTo", "reply_to")
	if replyTo == "" {
		replyTo = tc.MsgID
	}

	channel := tc.Channel
	if channel == "" {
		channel = bus.ChannelWhatsApp
	}
	if chatID == "" {
		return "", fmt.Errorf("%s: no recipient", t.name)
	}

	msg := bus.NewOutboundMessage(channel, chatID, content)
	msg.SetReplyTo(replyTo)
	msg.SetMetadata(map[string]any{"direct": true})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	t.bus.PublishOutbound(msg)

	return fmt.Sprintf("Message sent to %s:%s (%d chars)", channel, chatID, len(content)), nil
}

func firstString(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := args[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
