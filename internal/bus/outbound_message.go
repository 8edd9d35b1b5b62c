package bus

// OutboundMessage is a response to be sent back through a channel.
type OutboundMessage struct {
	channel  Channel        // destination channel name
	chatId   string         // destination chat / DM identifier
	content  string         // text to send
	replyTo  string         // original message ID to quote/reply to (optional)
	metadata map[string]any // channel-specific hints
}

func (m OutboundMessage) Channel() Channel               { return m.channel }
func (m OutboundMessage) ChatId() string                 { return m.chatId }
func (m OutboundMessage) Content() string                { return m.content }
func (m OutboundMessage) ReplyTo() string                { return m.replyTo }
func (m OutboundMessage) Metadata() map[string]any       { return m.metadata }
func (m *OutboundMessage) SetReplyTo(id string)          { m.replyTo = id }
func (m *OutboundMessage) SetMetadata(md map[string]any) { m.metadata = md }

func NewOutboundMessage(channel Channel, chatId, content string) OutboundMessage {
	return OutboundMessage{
		channel: channel,
		chatId:  chatId,
		content: content,
	}
}

// Direct reports whether the message was sent by the assistant through the
// deliver tool rather than as the turn's final reply.
func (m OutboundMessage) Direct() bool {
	direct, _ := m.metadata["direct"].(bool)
	return direct
}
