package schema

// Messages is the ordered list of messages exchanged with the LLM.
// Insertion order is semantic order. It owns typed append methods so
// callers never construct raw maps.
type Messages struct {
	Messages []Message
}

// NewMessages returns a Messages initialised with the given messages.
// Called with no arguments it returns an empty Messages ready for use.
func NewMessages(msgs ...Message) Messages {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Messages{Messages: out}
}

// AddSystem appends a system message.
func (mh *Messages) AddSystem(content string) {
	mh.Messages = append(mh.Messages, NewSystemMessage(content))
}

// AddUser appends a user message. content may be a plain string or
// []ContentBlock.
func (mh *Messages) AddUser(content any) {
	mh.Messages = append(mh.Messages, NewUserMessage(content))
}

// AddAssistant appends an assistant message with optional tool calls.
func (mh *Messages) AddAssistant(content *string, toolCalls []ToolCall) {
	mh.Messages = append(mh.Messages, NewAssistantMessage(content, toolCalls))
}

// AddToolResult appends a tool-result message.
func (mh *Messages) AddToolResult(toolCallID, toolName, result string) {
	mh.Messages = append(mh.Messages, NewToolResultMessage(toolCallID, toolName, result))
}

// Add appends an already-built message.
func (mh *Messages) Add(m Message) {
	mh.Messages = append(mh.Messages, m)
}

// Append copies all messages from other into mh.
func (mh *Messages) Append(other Messages) {
	mh.Messages = append(mh.Messages, other.Messages...)
}

// Len returns the number of messages.
func (mh Messages) Len() int { return len(mh.Messages) }

// Last returns the final message and true, or a zero Message and false
// when the list is empty.
func (mh Messages) Last() (Message, bool) {
	if len(mh.Messages) == 0 {
		return Message{}, false
	}
	return mh.Messages[len(mh.Messages)-1], true
}

// Tail returns a copy of the last n messages.
func (mh Messages) Tail(n int) Messages {
	msgs := mh.Messages
	if n >= 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return NewMessages(msgs...)
}

// Clone returns a copy of mh with an independent backing slice.
func (mh Messages) Clone() Messages {
	return NewMessages(mh.Messages...)
}
