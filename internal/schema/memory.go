package schema

import "context"

// LongTermSink persists summarized conversation context for a user.
type LongTermSink interface {
	Store(ctx context.Context, userID, text string) error
}

// Summarizer condenses a block of conversation text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
