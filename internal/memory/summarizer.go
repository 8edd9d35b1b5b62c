package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

const summarizePrompt = "Summarize the following conversation excerpt concisely, focusing on facts and important information."

// ChatSender is the part of the provider gateway the summarizer needs.
type ChatSender interface {
	Send(ctx context.Context, history schema.Messages, tools []map[string]any) (schema.LLMResponse, error)
}

// LLMSummarizer implements schema.Summarizer with a tool-less chat call.
type LLMSummarizer struct {
	chat ChatSender
}

func NewLLMSummarizer(chat ChatSender) *LLMSummarizer {
	return &LLMSummarizer{chat: chat}
}

// Summarize asks the model for a short factual summary of text.
func (s *LLMSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	h := schema.NewMessages()
	h.AddSystem(summarizePrompt)
	h.AddUser(text)

	resp, err := s.chat.Send(ctx, h, nil)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("summarize: empty response")
	}
	return summary, nil
}
