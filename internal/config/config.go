// Package config holds all configuration for the recovery engine.
// Config is loaded once at startup and passed by reference into the
// coordinator and each strategy; there is no ambient module state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all codemend configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Recovery coordinator settings
	Recovery RecoveryConfig `yaml:"recovery"`

	// LLM configuration for the generative strategy
	LLM LLMConfig `yaml:"llm"`

	// Fix-pattern knowledge store
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// Identifier registry
	Registry RegistryConfig `yaml:"registry"`

	// Artifact deduplication
	Dedupe DedupeConfig `yaml:"dedupe"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RecoveryConfig configures the strategy chain coordinator.
type RecoveryConfig struct {
	// AttemptCap bounds total strategy invocations per session.
	AttemptCap int `yaml:"attempt_cap"`

	// StrategyTimeout bounds externally-suspending strategy calls.
	StrategyTimeout string `yaml:"strategy_timeout"`

	// MaxConcurrentSessions caps parallel recovery sessions.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`

	// OscillationWindow is how many recent attempts are scanned for
	// an A-undoes-B cycle on the same fingerprint.
	OscillationWindow int `yaml:"oscillation_window"`
}

// LLMConfig configures the generative fallback strategy.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai-compatible
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// KnowledgeConfig configures the fix-pattern store.
type KnowledgeConfig struct {
	DatabasePath string `yaml:"database_path"`
	SeedPath     string `yaml:"seed_path"`

	// MinScore is the similarity threshold below which a pattern lookup
	// returns no match. Tunable, not a contract.
	MinScore float64 `yaml:"min_score"`

	LookupTimeout string `yaml:"lookup_timeout"`
}

// RegistryConfig configures the identifier registry.
type RegistryConfig struct {
	SnapshotPath  string `yaml:"snapshot_path"`
	SeedPath      string `yaml:"seed_path"`
	WatchSnapshot bool   `yaml:"watch_snapshot"`
}

// DedupeConfig configures the artifact deduplicator.
type DedupeConfig struct {
	// PreferredRoots maps singleton basenames to their preferred
	// directory. An empty value means the tree root.
	PreferredRoots map[string]string `yaml:"preferred_roots"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Name:    "codemend",
		Version: "0.1.0",
		Recovery: RecoveryConfig{
			AttemptCap:            8,
			StrategyTimeout:       "90s",
			MaxConcurrentSessions: 4,
			OscillationWindow:     6,
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  "120s",
		},
		Knowledge: KnowledgeConfig{
			DatabasePath:  ".codemend/knowledge.db",
			MinScore:      0.35,
			LookupTimeout: "10s",
		},
		Registry: RegistryConfig{
			SnapshotPath:  ".codemend/identifiers.json",
			WatchSnapshot: false,
		},
		Dedupe: DedupeConfig{
			PreferredRoots: map[string]string{},
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults
// for anything unset, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps CODEMEND_* environment variables onto the config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODEMEND_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("CODEMEND_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("CODEMEND_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("CODEMEND_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("CODEMEND_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
}

// Validate checks invariants the rest of the engine relies on.
func (c *Config) Validate() error {
	if c.Recovery.AttemptCap <= 0 {
		return fmt.Errorf("recovery.attempt_cap must be positive, got %d", c.Recovery.AttemptCap)
	}
	if c.Recovery.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("recovery.max_concurrent_sessions must be positive, got %d", c.Recovery.MaxConcurrentSessions)
	}
	if c.Knowledge.MinScore < 0 || c.Knowledge.MinScore > 1 {
		return fmt.Errorf("knowledge.min_score must be in [0,1], got %f", c.Knowledge.MinScore)
	}
	return nil
}

// ParseTimeout parses a duration string, returning fallback on empty or
// invalid input.
func ParseTimeout(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
