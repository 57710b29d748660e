package config

import (
	"fmt"
	"os"
)

// Config holds all recall configuration. Defaults plus environment
// overrides; there is no config file yet.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
}

type ServerConfig struct {
	Bind string
	Port int
}

type DatabaseConfig struct {
	Path string
}

type LLMConfig struct {
	Provider    string  // path segment of the completion gateway, e.g. "openai"
	BaseURL     string  // gateway base URL
	Model       string  // e.g. "gpt-4o-mini"
	APIKey      string  // bearer token; empty disables completion
	TimeoutSecs int     // per-request timeout
	MaxTokens   int     // default max_tokens
	Temperature float64 // default temperature
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37710,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://api.recall.dev/v1",
			Model:       "gpt-4o-mini",
			TimeoutSecs: 30,
			MaxTokens:   1024,
			Temperature: 0.7,
		},
	}
}

// Load returns the default config with environment overrides applied.
// RECALL_API_KEY enables the completion backend; its absence disables
// completion but never persistence.
func Load() Config {
	cfg := Default()
	if v := os.Getenv("RECALL_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("RECALL_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("RECALL_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("RECALL_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("RECALL_DB"); v != "" {
		cfg.Database.Path = v
	}
	return cfg
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
