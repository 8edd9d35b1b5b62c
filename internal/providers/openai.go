package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/thadeucbr/assistentev4-sub000/internal/schema"
)

// OpenAIProvider makes direct HTTP calls to any OpenAI-compatible
// /chat/completions endpoint (OpenAI, OpenRouter, Groq, Ollama's /v1, …).
type OpenAIProvider struct {
	name         string
	apiKey       string
	apiBase      string
	defaultModel string
	extraHeaders map[string]string
	spec         *ProviderSpec
	httpClient   *http.Client
}

// Params are the raw values needed to construct a provider.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	ProviderName string // registry name, e.g. "openai", "ollama"
	APIKey       string
	APIBase      string
	ExtraHeaders map[string]string
	DefaultModel string
	Timeout      time.Duration
}

// NewOpenAIProvider constructs a provider from raw config values.
func NewOpenAIProvider(p Params) *OpenAIProvider {
	spec := FindByName(p.ProviderName)
	if spec == nil {
		spec = FindByModel(p.DefaultModel)
	}

	base := p.APIBase
	if base == "" && spec != nil {
		base = spec.DefaultAPIBase
	}
	if base == "" {
		base = "https://api.openai.com/v1"
	}

	name := p.ProviderName
	if name == "" && spec != nil {
		name = spec.Name
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &OpenAIProvider{
		name:         name,
		apiKey:       p.APIKey,
		apiBase:      strings.TrimRight(base, "/"),
		defaultModel: p.DefaultModel,
		extraHeaders: p.ExtraHeaders,
		spec:         spec,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// Chat implements schema.LLMProvider.
func (p *OpenAIProvider) Chat(
	ctx context.Context,
	messages schema.Messages,
	tools []map[string]any,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	model := opts.Model
	if model == "" {
		model = p.defaultModel
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body := map[string]any{
		"model":       bareModel(p.spec, model),
		"messages":    wireMessages(messages),
		"max_tokens":  maxTokens,
		"temperature": opts.Temperature,
	}
	if len(tools) > 0 {
		body["tools"] = tools
		body["tool_choice"] = "auto"
	}

	data, err := json.Marshal(body)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("%s: HTTP request: %w", p.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.LLMResponse{}, fmt.Errorf("%s: read response: %w", p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return schema.LLMResponse{}, p.httpError(resp, raw)
	}

	return parseOpenAIResponse(raw)
}

// httpError maps a non-200 response to a typed error. 429 is reported as a
// RateLimitError so the gateway can tell it apart from other failures.
func (p *OpenAIProvider) httpError(resp *http.Response, body []byte) error {
	excerpt := strings.TrimSpace(string(body))
	if len(excerpt) > 300 {
		excerpt = excerpt[:300]
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		rl := &RateLimitError{Provider: p.name, Body: excerpt}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			rl.RetryAfter = time.Duration(secs) * time.Second
		}
		return rl
	}
	return &StatusError{Provider: p.name, Code: resp.StatusCode, Body: excerpt}
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

// messageToWireMap converts a typed Message to the OpenAI wire-format map.
func messageToWireMap(m schema.Message) map[string]any {
	wire := map[string]any{
		"role":    m.Role,
		"content": m.Content,
	}
	if m.Role == schema.RoleAssistant && len(m.ToolCalls) > 0 {
		raw := make([]map[string]any, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			raw[i] = tc.ToWireMap()
		}
		wire["tool_calls"] = raw
	}
	if m.Role == schema.RoleTool {
		wire["tool_call_id"] = m.ToolCallID
		if m.ToolName != "" {
			wire["name"] = m.ToolName
		}
	}
	return wire
}

func wireMessages(messages schema.Messages) []map[string]any {
	out := make([]map[string]any, 0, len(messages.Messages))
	for _, m := range messages.Messages {
		out = append(out, messageToWireMap(m))
	}
	return out
}

// openAIRespBody is the subset of the chat completion response we care about.
type openAIRespBody struct {
	Choices []struct {
		Message struct {
			Content   any `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func parseOpenAIResponse(raw []byte) (schema.LLMResponse, error) {
	var body openAIRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.LLMResponse{}, fmt.Errorf("parse response: %w", err)
	}
	if len(body.Choices) == 0 {
		return schema.LLMResponse{}, fmt.Errorf("empty choices in response")
	}

	msg := body.Choices[0].Message

	var content *string
	if c, ok := msg.Content.(string); ok && c != "" {
		content = &c
	}

	var toolCalls []schema.ToolCall
	for _, tc := range msg.ToolCalls {
		args, err := repairJSON(tc.Function.Arguments)
		if err != nil {
			slog.Warn("failed to parse tool arguments", "tool", tc.Function.Name, "err", err)
			args = "{}"
		}
		toolCalls = append(toolCalls, schema.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	finish := body.Choices[0].FinishReason
	if finish == "" {
		finish = "stop"
	}

	return schema.LLMResponse{
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: finish,
		Usage: map[string]int{
			"prompt_tokens":     body.Usage.PromptTokens,
			"completion_tokens": body.Usage.CompletionTokens,
			"total_tokens":      body.Usage.TotalTokens,
		},
	}, nil
}

// repairJSON returns raw when it is a valid JSON object, otherwise retries
// after trimming trailing garbage. Some models emit truncated arguments.
func repairJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "{}", nil
	}

	var probe map[string]any
	if json.Unmarshal([]byte(raw), &probe) == nil {
		return raw, nil
	}

	stripped := strings.TrimRight(raw, " \t\n\r}]")
	if !strings.HasSuffix(stripped, "}") {
		stripped += "}"
	}
	if json.Unmarshal([]byte(stripped), &probe) == nil {
		return stripped, nil
	}

	if i := strings.LastIndex(raw, "}"); i >= 0 {
		if json.Unmarshal([]byte(raw[:i+1]), &probe) == nil {
			return raw[:i+1], nil
		}
	}

	return "", fmt.Errorf("cannot repair JSON: %s", raw)
}
