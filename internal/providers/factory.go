package providers

import "github.com/thadeucbr/assistentev4-sub000/internal/schema"

// New creates the schema.LLMProvider for the given params. Every supported
// backend speaks the OpenAI-compatible chat completions protocol, local
// Ollama included (through its /v1 endpoint).
func New(p Params) schema.LLMProvider {
	return NewOpenAIProvider(p)
}

// NewRoute creates a provider and wraps it in a gateway route.
func NewRoute(p Params) Route {
	name := p.ProviderName
	if name == "" {
		if spec := FindByModel(p.DefaultModel); spec != nil {
			name = spec.Name
		}
	}
	return Route{Name: name, Provider: New(p), Model: p.DefaultModel}
}
