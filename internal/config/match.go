package config

import (
	"fmt"
	"time"

	"github.com/thadeucbr/assistentev4-sub000/internal/providers"
)

// ProviderName resolves the registry name for p: the explicit provider,
// else the one matched from the model name, else "".
func ProviderName(p ProviderConfig) string {
	if p.Provider != "" {
		return p.Provider
	}
	if spec := providers.FindByModel(p.Model); spec != nil {
		return spec.Name
	}
	return ""
}

// ProviderParams resolves p into the parameters of a provider client.
// The API base falls back to the registry default; a key is required
// unless the provider runs locally.
func ProviderParams(p ProviderConfig) (providers.Params, error) {
	if !p.Configured() {
		return providers.Params{}, fmt.Errorf("no model configured")
	}

	name := ProviderName(p)
	spec := providers.FindByName(name)
	if spec == nil {
		if p.APIBase == "" {
			return providers.Params{}, fmt.Errorf("model %q: unknown provider %q and no apiBase", p.Model, name)
		}
		name = "custom"
	}

	apiBase := p.APIBase
	if apiBase == "" {
		apiBase = spec.DefaultAPIBase
	}
	if apiBase == "" {
		return providers.Params{}, fmt.Errorf("model %q: provider %s needs an apiBase", p.Model, name)
	}
	if p.APIKey == "" && (spec == nil || !spec.IsLocal) {
		return providers.Params{}, fmt.Errorf("model %q: missing apiKey for provider %s", p.Model, name)
	}

	timeout := time.Duration(p.TimeoutSeconds) * time.Second
	return providers.Params{
		ProviderName: name,
		APIKey:       p.APIKey,
		APIBase:      apiBase,
		ExtraHeaders: p.ExtraHeaders,
		DefaultModel: p.Model,
		Timeout:      timeout,
	}, nil
}
