package bus

// MessageBus decouples chat channels from the agent core.
//
// Channels push InboundMessages; the agent consumes them, processes, and
// pushes OutboundMessages back for the channel manager to route.
// Both directions use buffered channels so senders never block on a slow consumer.
type MessageBus struct {
	inbound  chan InboundMessage  // channels → agent
	outbound chan OutboundMessage // agent → channels
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, bufSize),
		outbound: make(chan OutboundMessage, bufSize),
	}
}

func (b *MessageBus) PublishInbound(msg InboundMessage)   { b.inbound <- msg }
func (b *MessageBus) PublishOutbound(msg OutboundMessage) { b.outbound <- msg }

// InboundChan returns a receive-only view of the inbound queue.
func (b *MessageBus) InboundChan() <-chan InboundMessage { return b.inbound }

// OutboundChan returns a receive-only view of the outbound queue.
func (b *MessageBus) OutboundChan() <-chan OutboundMessage { return b.outbound }

func (b *MessageBus) InboundSize() int  { return len(b.inbound) }
func (b *MessageBus) OutboundSize() int { return len(b.outbound) }
