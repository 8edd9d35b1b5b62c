package providers

import "strings"

// ProviderSpec is the metadata record for one OpenAI-compatible provider.
type ProviderSpec struct {
	Name           string   // config name, e.g. "openai"
	Keywords       []string // model-name keywords for matching (lowercase)
	DisplayName    string   // shown in `assistente status`
	DefaultAPIBase string   // base URL used when none is configured
	IsGateway      bool     // routes any model (OpenRouter)
	IsLocal        bool     // local deployment, no API key required
}

// Label returns the display name, defaulting to Name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// ---------------------------------------------------------------------------
// PROVIDERS is the registry. Order = match priority.
// ---------------------------------------------------------------------------

var PROVIDERS = []ProviderSpec{
	{
		Name:           "openai",
		Keywords:       []string{"openai", "gpt"},
		DisplayName:    "OpenAI",
		DefaultAPIBase: "https://api.openai.com/v1",
	},
	{
		Name:           "openrouter",
		Keywords:       []string{"openrouter"},
		DisplayName:    "OpenRouter",
		DefaultAPIBase: "https://openrouter.ai/api/v1",
		IsGateway:      true,
	},
	{
		Name:           "groq",
		Keywords:       []string{"groq"},
		DisplayName:    "Groq",
		DefaultAPIBase: "https://api.groq.com/openai/v1",
	},
	{
		Name:           "deepseek",
		Keywords:       []string{"deepseek"},
		DisplayName:    "DeepSeek",
		DefaultAPIBase: "https://api.deepseek.com/v1",
	},
	{
		Name:           "ollama",
		Keywords:       []string{"llama", "mistral", "gemma", "qwen", "codellama"},
		DisplayName:    "Ollama",
		DefaultAPIBase: "http://localhost:11434/v1",
		IsLocal:        true,
	},
	{
		Name:        "custom",
		DisplayName: "Custom",
	},
}

// FindByName returns the ProviderSpec whose Name equals name.
func FindByName(name string) *ProviderSpec {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range PROVIDERS {
		if PROVIDERS[i].Name == name {
			return &PROVIDERS[i]
		}
	}
	return nil
}

// FindByModel matches a provider by explicit "provider/model" prefix first,
// then by model-name keyword (case-insensitive). Gateways only match by
// prefix.
func FindByModel(model string) *ProviderSpec {
	lower := strings.ToLower(model)
	if prefix, _, ok := strings.Cut(lower, "/"); ok {
		if s := FindByName(prefix); s != nil {
			return s
		}
	}
	for i := range PROVIDERS {
		spec := &PROVIDERS[i]
		if spec.IsGateway {
			continue
		}
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				return spec
			}
		}
	}
	return nil
}

// bareModel strips a known "provider/" routing prefix so the API receives
// the model name it expects. Gateways keep the sub-prefix they route on.
func bareModel(spec *ProviderSpec, model string) string {
	prefix, rest, ok := strings.Cut(model, "/")
	if !ok {
		return model
	}
	if spec != nil && spec.IsGateway {
		if strings.EqualFold(prefix, spec.Name) {
			return rest
		}
		return model
	}
	if FindByName(prefix) != nil {
		return rest
	}
	return model
}
