// Package config loads the background service's runtime configuration
// from config.json and applies environment overrides on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Bridge       BridgeConfig       `json:"bridge"`
	Anki         AnkiConfig         `json:"anki"`
	Dictionaries DictionariesConfig `json:"dictionaries"`
	Options      OptionsConfig      `json:"options"`
	Router       RouterConfig       `json:"router"`
	Logging      LoggingConfig      `json:"logging,omitempty"`
}

// BridgeConfig configures the WebSocket bridge bind address.
type BridgeConfig struct {
	Host string `json:"host" env:"WORDBRIDGE_BRIDGE_HOST"`
	Port int    `json:"port" env:"WORDBRIDGE_BRIDGE_PORT"`
}

// AnkiConfig configures the flashcard service client.
type AnkiConfig struct {
	URL            string `json:"url" env:"WORDBRIDGE_ANKI_URL"`
	Key            string `json:"key" env:"WORDBRIDGE_ANKI_KEY"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout returns the configured request timeout.
func (c AnkiConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DictionariesConfig locates the allow-listed dictionary bundles.
type DictionariesConfig struct {
	Dir string `json:"dir" env:"WORDBRIDGE_DICT_DIR"`
}

// OptionsConfig locates the persisted extension options.
type OptionsConfig struct {
	Path string `json:"path" env:"WORDBRIDGE_OPTIONS_PATH"`
}

// RouterConfig fixes the routing policy knobs the composition root feeds
// into the message router.
type RouterConfig struct {
	// ThrowOnUnknown selects the hard-failure policy for unknown
	// actions. The shipped default answers with a failure envelope
	// instead, so stale UI surfaces cannot error-spam the log.
	ThrowOnUnknown bool `json:"throw_on_unknown"`

	// RateLimit caps requests per sender per window; zero disables the
	// middleware.
	RateLimit         int `json:"rate_limit"`
	RateWindowSeconds int `json:"rate_window_seconds"`
}

// RateWindow returns the configured rate-limit window.
func (c RouterConfig) RateWindow() time.Duration {
	if c.RateWindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateWindowSeconds) * time.Second
}

// LoggingConfig controls structured log output format and verbosity.
// Environment overrides land here through the same env.Parse pass as every
// other section; the logger consumes the resolved values as-is.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" env:"WORDBRIDGE_LOG_FORMAT"`
	Level     string `json:"level,omitempty" env:"WORDBRIDGE_LOG_LEVEL"`
	AddSource bool   `json:"add_source,omitempty" env:"WORDBRIDGE_LOG_ADD_SOURCE"`
}

// LoadConfig resolves config.json, unmarshals it, and applies environment
// overrides.
func LoadConfig() (*Config, error) {
	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Bridge.Port < 0 || c.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port %d out of range", c.Bridge.Port)
	}
	if c.Anki.TimeoutSeconds < 0 {
		return fmt.Errorf("anki.timeout_seconds %d is negative", c.Anki.TimeoutSeconds)
	}
	if c.Router.RateLimit < 0 {
		return fmt.Errorf("router.rate_limit %d is negative", c.Router.RateLimit)
	}
	return nil
}

// findConfigPath resolves the active config file location.
//
// Precedence is WORDBRIDGE_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("WORDBRIDGE_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("WORDBRIDGE_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
