// Package config defines the configuration schema for assistente.
//
// JSON keys use camelCase. The same keys are accepted in YAML files.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// AgentConfig holds turn-level behaviour.
type AgentConfig struct {
	Workspace        string  `json:"workspace"`
	Name             string  `json:"name"`
	MaxTokens        int     `json:"maxTokens"`
	Temperature      float64 `json:"temperature"`
	MaxCycles        int     `json:"maxCycles"`
	MaxHistoryLength int     `json:"maxHistoryLength"`
	FallbackText     string  `json:"fallbackText,omitempty"`
}

func defaultAgentConfig() AgentConfig {
	return AgentConfig{
		Workspace:        "~/.assistente/workspace",
		Name:             "Assistente",
		MaxTokens:        4096,
		Temperature:      0.7,
		MaxCycles:        3,
		MaxHistoryLength: 50,
	}
}

// ProviderConfig selects one LLM route.
type ProviderConfig struct {
	// Provider is the registry name ("openai", "openrouter", "ollama", …).
	// Empty means: infer from the model name.
	Provider       string            `json:"provider,omitempty"`
	Model          string            `json:"model"`
	APIKey         string            `json:"apiKey,omitempty"`
	APIBase        string            `json:"apiBase,omitempty"`
	ExtraHeaders   map[string]string `json:"extraHeaders,omitempty"`
	TimeoutSeconds int               `json:"timeoutSeconds,omitempty"`
}

// Configured reports whether the route names a model.
func (p *ProviderConfig) Configured() bool {
	return p != nil && strings.TrimSpace(p.Model) != ""
}

// ProvidersConfig holds the primary route, the optional failover route and
// per-model context limit overrides for the circuit breaker.
type ProvidersConfig struct {
	Primary     ProviderConfig  `json:"primary"`
	Secondary   *ProviderConfig `json:"secondary,omitempty"`
	TokenLimits map[string]int  `json:"tokenLimits,omitempty"`
}

func defaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		Primary: ProviderConfig{Model: "gpt-4o-mini"},
	}
}

// BridgeConfig describes the external tool host and the call policy.
type BridgeConfig struct {
	Command          string            `json:"command"`
	Args             []string          `json:"args"`
	Env              map[string]string `json:"env,omitempty"`
	Handshake        bool              `json:"handshake"`
	TimeoutSeconds   int               `json:"timeoutSeconds"`
	MaxAttempts      int               `json:"maxAttempts"`
	BackoffMs        int               `json:"backoffMs"`
	BypassBytes      int               `json:"bypassBytes"`
	MaxResponseBytes int               `json:"maxResponseBytes"`
	DeliverTools     []string          `json:"deliverTools"`
}

func defaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Command:          "node",
		Args:             []string{"mcp-server.js"},
		Handshake:        true,
		TimeoutSeconds:   60,
		MaxAttempts:      2,
		BackoffMs:        1000,
		BypassBytes:      50000,
		MaxResponseBytes: 16 << 20,
		DeliverTools:     []string{"send_message"},
	}
}

// LoopGuardConfig configures duplicate tool call detection.
type LoopGuardConfig struct {
	// Tools are treated as side-effecting regardless of their annotations.
	Tools    []string `json:"tools"`
	Lookback int      `json:"lookback"`
}

func defaultLoopGuardConfig() LoopGuardConfig {
	return LoopGuardConfig{Tools: []string{"generate_image"}, Lookback: 6}
}

// MemoryConfig configures short- and long-term memory.
type MemoryConfig struct {
	DBPath             string `json:"dbPath"`
	MaxSTMMessages     int    `json:"maxStmMessages"`
	SummarizeThreshold int    `json:"summarizeThreshold"`
	MaxSummaryChars    int    `json:"maxSummaryChars"`
	RecentLimit        int    `json:"recentLimit"`
	TaskTimeoutSeconds int    `json:"taskTimeoutSeconds"`
}

func defaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		DBPath:             "~/.assistente/ltm.db",
		MaxSTMMessages:     10,
		SummarizeThreshold: 7,
		MaxSummaryChars:    24000,
		RecentLimit:        5,
		TaskTimeoutSeconds: 120,
	}
}

// EmbeddingsConfig points at the Ollama embedding endpoint.
type EmbeddingsConfig struct {
	BaseURL        string `json:"baseUrl"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

func defaultEmbeddingsConfig() EmbeddingsConfig {
	return EmbeddingsConfig{BaseURL: "http://localhost:11434", Model: "nomic-embed-text", TimeoutSeconds: 30}
}

// WhatsAppConfig configures the WhatsApp channel.
type WhatsAppConfig struct {
	Enabled     bool     `json:"enabled"`
	BridgeURL   string   `json:"bridgeUrl"`
	BridgeToken string   `json:"bridgeToken,omitempty"`
	AllowFrom   []string `json:"allowFrom"`
}

func defaultWhatsAppConfig() WhatsAppConfig {
	return WhatsAppConfig{Enabled: true, BridgeURL: "ws://localhost:3001", AllowFrom: []string{}}
}

// ChannelsConfig groups all channel configurations.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// HealthConfig configures the tool host health monitor.
type HealthConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

func defaultHealthConfig() HealthConfig {
	return HealthConfig{Enabled: true, Schedule: "@every 5m"}
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" or "json"
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from
// ~/.assistente/config.json.
type Config struct {
	Agent      AgentConfig      `json:"agent"`
	Providers  ProvidersConfig  `json:"providers"`
	Bridge     BridgeConfig     `json:"bridge"`
	LoopGuard  LoopGuardConfig  `json:"loopGuard"`
	Memory     MemoryConfig     `json:"memory"`
	Embeddings EmbeddingsConfig `json:"embeddings"`
	Channels   ChannelsConfig   `json:"channels"`
	Health     HealthConfig     `json:"health"`
	Log        LogConfig        `json:"log"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Agent:      defaultAgentConfig(),
		Providers:  defaultProvidersConfig(),
		Bridge:     defaultBridgeConfig(),
		LoopGuard:  defaultLoopGuardConfig(),
		Memory:     defaultMemoryConfig(),
		Embeddings: defaultEmbeddingsConfig(),
		Channels:   ChannelsConfig{WhatsApp: defaultWhatsAppConfig()},
		Health:     defaultHealthConfig(),
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// WorkspacePath returns the expanded absolute path to the agent workspace.
func (c *Config) WorkspacePath() string {
	ws := c.Agent.Workspace
	if ws == "" {
		ws = defaultAgentConfig().Workspace
	}
	return ExpandHome(ws)
}

// MemoryDBPath returns the expanded long-term memory database path.
func (c *Config) MemoryDBPath() string {
	p := c.Memory.DBPath
	if p == "" {
		p = defaultMemoryConfig().DBPath
	}
	return ExpandHome(p)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
