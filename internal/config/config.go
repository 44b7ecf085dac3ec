// Package config loads and validates the gateway's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "10m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ActionBudget overrides an action's rate-limit budget.
type ActionBudget struct {
	Limit  int      `yaml:"limit"`
	Window Duration `yaml:"window"`
}

// Config captures runtime settings for the gateway process.
type Config struct {
	Listen       string `yaml:"listen"`
	DatabasePath string `yaml:"databasePath"`

	Gateway struct {
		MinExtensionVersion    string   `yaml:"minExtensionVersion"`
		LatestExtensionVersion string   `yaml:"latestExtensionVersion"`
		AllowedExtensionIDs    []string `yaml:"allowedExtensionIds"`
		AllowedOrigins         []string `yaml:"allowedOrigins"`
	} `yaml:"gateway"`

	Replay struct {
		Backend    string   `yaml:"backend"` // "memory" | "sqlite"
		TTL        Duration `yaml:"ttl"`
		MaxEntries int      `yaml:"maxEntries"`
	} `yaml:"replay"`

	Idempotency struct {
		TTL         Duration `yaml:"ttl"`
		WaitTimeout Duration `yaml:"waitTimeout"`
	} `yaml:"idempotency"`

	Auth struct {
		TokenTTL Duration `yaml:"tokenTtl"`
	} `yaml:"auth"`

	// Actions overrides per-action rate-limit budgets; unnamed actions keep
	// their registered defaults.
	Actions map[string]ActionBudget `yaml:"actions"`

	AI struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"apiKey"`
		Model    string `yaml:"model"`
	} `yaml:"ai"`

	Sweep struct {
		Interval Duration `yaml:"interval"`
	} `yaml:"sweep"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Listen:       ":8080",
		DatabasePath: "gateway.db",
	}
	cfg.Gateway.MinExtensionVersion = "5.7.0"
	cfg.Gateway.LatestExtensionVersion = "5.8.1"
	cfg.Gateway.AllowedExtensionIDs = []string{"shopopti-extension"}
	cfg.Replay.Backend = "memory"
	cfg.Replay.TTL = Duration(10 * time.Minute)
	cfg.Replay.MaxEntries = 100_000
	cfg.Idempotency.TTL = Duration(24 * time.Hour)
	cfg.Idempotency.WaitTimeout = Duration(10 * time.Second)
	cfg.Auth.TokenTTL = Duration(30 * 24 * time.Hour)
	cfg.Sweep.Interval = Duration(5 * time.Minute)
	return cfg
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("config: databasePath is required")
	}
	switch c.Replay.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("config: replay.backend must be \"memory\" or \"sqlite\", got %q", c.Replay.Backend)
	}
	if c.Replay.TTL <= 0 {
		return fmt.Errorf("config: replay.ttl must be positive")
	}
	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("config: idempotency.ttl must be positive")
	}
	if c.Idempotency.WaitTimeout <= 0 {
		return fmt.Errorf("config: idempotency.waitTimeout must be positive")
	}
	for name, budget := range c.Actions {
		if budget.Limit <= 0 {
			return fmt.Errorf("config: actions.%s.limit must be positive", name)
		}
		if budget.Window <= 0 {
			return fmt.Errorf("config: actions.%s.window must be positive", name)
		}
	}
	return nil
}
