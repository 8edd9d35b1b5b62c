package tools

import (
	"context"

	"github.com/thadeucbr/assistentev4-sub000/internal/bus"
)

// TurnContext carries per-turn routing metadata through the context tree.
// It is set by the agent loop once per inbound message and read by the tool
// bridge when it fills recipient, reply-to and user id arguments.
type TurnContext struct {
	Channel bus.Channel
	ChatID  string // recipient of any message sent during the turn
	MsgID   string // inbound message id, quoted by replies
	UserID  string // sender id, used by per-user tools
}

type turnKey struct{}

// WithTurn returns a child context that carries tc.
func WithTurn(ctx context.Context, tc TurnContext) context.Context {
	return context.WithValue(ctx, turnKey{}, tc)
}

// TurnCtx extracts the TurnContext from ctx.
// Returns a zero-value TurnContext if none was set.
func TurnCtx(ctx context.Context) TurnContext {
	tc, _ := ctx.Value(turnKey{}).(TurnContext)
	return tc
}
