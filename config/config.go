// Package config defines the TaskPilot application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level TaskPilot configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Inference InferenceConfig `json:"inference" yaml:"inference"`
	LogLevel  string          `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":8735"
}

// AuthConfig controls account authentication.
type AuthConfig struct {
	JWTSecret string        `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl" yaml:"token_ttl"`
}

// StoreConfig locates the SQLite databases.
type StoreConfig struct {
	TaskDB string `json:"task_db" yaml:"task_db"`
	UserDB string `json:"user_db" yaml:"user_db"`
}

// InferenceConfig selects and tunes the language-model backend.
type InferenceConfig struct {
	Provider  string        `json:"provider" yaml:"provider"` // "mock", "anthropic", "openai"
	APIKey    string        `json:"api_key,omitempty" yaml:"api_key"`
	Model     string        `json:"model,omitempty" yaml:"model"`
	BaseURL   string        `json:"base_url,omitempty" yaml:"base_url"`
	MaxTokens int           `json:"max_tokens,omitempty" yaml:"max_tokens"` // provider-level output cap
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8735",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Store: StoreConfig{
			TaskDB: "./data/tasks.db",
			UserDB: "./data/users.db",
		},
		Inference: InferenceConfig{
			Provider: "mock",
			Timeout:  30 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
// Fields absent from the file keep their defaults. API keys may also be
// supplied through the environment; see Resolve.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Resolve()
	return cfg, nil
}

// Resolve fills credential fields from the environment when the file left
// them blank, so secrets can stay out of checked-in configs.
func (c *Config) Resolve() {
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = os.Getenv("TASKPILOT_JWT_SECRET")
	}
	if c.Inference.APIKey == "" {
		switch c.Inference.Provider {
		case "anthropic":
			c.Inference.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.Inference.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// Validate reports configuration that cannot produce a working daemon.
func (c *Config) Validate() error {
	switch c.Inference.Provider {
	case "mock":
	case "anthropic", "openai":
		if c.Inference.APIKey == "" {
			return fmt.Errorf("inference provider %q requires an api_key", c.Inference.Provider)
		}
	default:
		return fmt.Errorf("unknown inference provider %q", c.Inference.Provider)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
