package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the file is read.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvLogLevel      = "ASSISTENTE_LOG_LEVEL"
	EnvWhatsAppToken = "WHATSAPP_BRIDGE_TOKEN"
)

// ConfigPath returns the default configuration file path:
// ~/.assistente/config.json.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// DataDir returns the assistente data directory: ~/.assistente.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".assistente"
	}
	return filepath.Join(home, ".assistente")
}

// Load reads and parses the config file at path; JSON by default, YAML
// when the extension is .yaml or .yml. If path is empty, ConfigPath() is
// used. A missing file yields the defaults; an unparsable one logs a
// warning and yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.applyEnv()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if isYAML(path) {
		data, err = yamlToJSON(data)
	}
	if err == nil {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		slog.Warn("failed to parse config, using defaults", "path", path, "err", err)
		cfg = DefaultConfig()
	}

	cfg.applyEnv()
	return &cfg, nil
}

// Save writes cfg to path as indented JSON (YAML for .yaml/.yml paths).
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if isYAML(path) {
		var tree map[string]any
		if err := json.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if data, err = yaml.Marshal(tree); err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
	} else {
		data = append(data, '\n')
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON decodes YAML into a generic tree and re-encodes it as JSON,
// so both formats share the json struct tags.
func yamlToJSON(data []byte) ([]byte, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if tree == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(tree)
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvOpenAIKey); key != "" {
		for _, p := range []*ProviderConfig{&c.Providers.Primary, c.Providers.Secondary} {
			if p != nil && p.APIKey == "" && ProviderName(*p) == "openai" {
				p.APIKey = key
			}
		}
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		c.Log.Level = lvl
	}
	if tok := os.Getenv(EnvWhatsAppToken); tok != "" {
		c.Channels.WhatsApp.BridgeToken = tok
	}
}
