// Package bus defines the message types that flow between channels and the agent.
package bus

import "time"

// SenderIdCLI is the sender id used for terminal input.
const SenderIdCLI = "user"

// InboundMessage is a message received from a chat channel.
type InboundMessage struct {
	channel   Channel        // "whatsapp", "cli", "system"
	senderId  string         // user identifier within the channel
	chatId    string         // chat / DM identifier
	content   string         // message text
	timestamp time.Time      // when the message was received
	media     []string       // local file paths of downloaded attachments
	metadata  map[string]any // channel-specific extra data (message_id, is_group, …)
}

// NewInboundMessage creates an InboundMessage with Timestamp set to now.
// Use SetMedia and SetMetadata to attach optional fields.
func NewInboundMessage(channel Channel, senderId, chatId, content string) InboundMessage {
	return InboundMessage{
		channel:   channel,
		senderId:  senderId,
		chatId:    chatId,
		content:   content,
		timestamp: time.Now(),
	}
}

func (m InboundMessage) ChatId() string                 { return m.chatId }
func (m InboundMessage) SenderId() string               { return m.senderId }
func (m InboundMessage) Content() string                { return m.content }
func (m InboundMessage) Channel() Channel               { return m.channel }
func (m InboundMessage) Timestamp() time.Time           { return m.timestamp }
func (m InboundMessage) Media() []string                { return m.media }
func (m InboundMessage) Metadata() map[string]any       { return m.metadata }
func (m *InboundMessage) SetMedia(media []string)       { m.media = media }
func (m *InboundMessage) SetMetadata(md map[string]any) { m.metadata = md }

// MessageId returns the platform message id from metadata, or "".
func (m InboundMessage) MessageId() string {
	id, _ := m.metadata["message_id"].(string)
	return id
}

// SessionKey returns the unique key used to look up the conversation session.
func (m InboundMessage) SessionKey() string {
	return RoutingKey(m.channel, m.chatId)
}
