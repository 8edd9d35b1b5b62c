package schema

// AgentSettings carries the model parameters used for every chat request
// made on behalf of a conversation turn.
type AgentSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxCycles   int
}

func NewAgentSettings(model string, temperature float64, maxTokens, maxCycles int) AgentSettings {
	return AgentSettings{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		MaxCycles:   maxCycles,
	}
}

// ChatOptions returns the per-request options derived from the settings.
func (s AgentSettings) ChatOptions() ChatOptions {
	return NewChatOptions(s.Model, s.MaxTokens, s.Temperature)
}
