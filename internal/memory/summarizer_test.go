package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

type recordingChat struct {
	reply   string
	err     error
	history schema.Messages
	tools   []map[string]any
}

func (c *recordingChat) Send(_ context.Context, h schema.Messages, tools []map[string]any) (schema.LLMResponse, error) {
	c.history = h
	c.tools = tools
	if c.err != nil {
		return schema.LLMResponse{}, c.err
	}
	return schema.LLMResponse{Content: &c.reply}, nil
}

func TestLLMSummarizer(t *testing.T) {
	chat := &recordingChat{reply: "  User likes cats.  "}
	got, err := NewLLMSummarizer(chat).Summarize(context.Background(), "user: I like cats")
	require.NoError(t, err)
	assert.Equal(t, "User likes cats.", got)

	require.Equal(t, 2, chat.history.Len())
	assert.Equal(t, schema.RoleSystem, chat.history.Messages[0].Role)
	assert.Equal(t, "user: I like cats", chat.history.Messages[1].Text())
	assert.Nil(t, chat.tools)
}

func TestLLMSummarizer_Errors(t *testing.T) {
	boom := errors.New("gateway down")
	_, err := NewLLMSummarizer(&recordingChat{err: boom}).Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	_, err = NewLLMSummarizer(&recordingChat{reply: "   "}).Summarize(context.Background(), "x")
	assert.ErrorContains(t, err, "empty")
}
