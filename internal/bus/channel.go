package bus

// Channel identifies the platform a message arrived on or is destined for.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelCLI      Channel = "cli"
	ChannelSystem   Channel = "system"
)

// RoutingKey joins a channel and chat id into a session key
// ("whatsapp:5511999999999@s.whatsapp.net").
func RoutingKey(channel Channel, chatId string) string {
	if chatId == "" {
		return string(channel)
	}
	return string(channel) + ":" + chatId
}
