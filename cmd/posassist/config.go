// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	// DefaultConfigFileName is the name of the config file
	DefaultConfigFileName = "posassist"

	// EnvPrefix prefixes every environment override
	EnvPrefix = "POSASSIST"

	// ServiceName is the system keyring service holding secrets
	ServiceName = "posassist"
)

// SecretMapping ties a keyring entry to the config field it fills.
type SecretMapping struct {
	KeyringKey string
	IsSet      func(*Config) bool
	Setter     func(*Config, string)
}

// GetSecretMappings lists the secrets that may live in the keyring.
func GetSecretMappings() []SecretMapping {
	return []SecretMapping{
		{
			KeyringKey: "anthropic_api_key",
			IsSet:      func(c *Config) bool { return c.LLM.AnthropicAPIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != "" },
			Setter:     func(c *Config, v string) { c.LLM.AnthropicAPIKey = v },
		},
	}
}

// ListAvailableSecretKeys returns the keyring key names.
func ListAvailableSecretKeys() []string {
	mappings := GetSecretMappings()
	keys := make([]string, len(mappings))
	for i, m := range mappings {
		keys[i] = m.KeyringKey
	}
	return keys
}

// loadSecretsFromKeyring fills secrets the flags, env and file left empty.
// A missing entry or unavailable keyring is not an error.
func loadSecretsFromKeyring(config *Config) {
	for _, mapping := range GetSecretMappings() {
		if mapping.IsSet(config) {
			continue
		}
		if value, err := keyring.Get(ServiceName, mapping.KeyringKey); err == nil && value != "" {
			mapping.Setter(config, value)
		}
	}
}

// Config holds all configuration for the assistant.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Persona PersonaConfig `mapstructure:"persona"`
	Store   StoreConfig   `mapstructure:"store"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LLMConfig selects and tunes the model backend.
type LLMConfig struct {
	Provider        string          `mapstructure:"provider"`
	AnthropicAPIKey string          `mapstructure:"anthropic_api_key"`
	AnthropicModel  string          `mapstructure:"anthropic_model"`
	BedrockRegion   string          `mapstructure:"bedrock_region"`
	BedrockModelID  string          `mapstructure:"bedrock_model_id"`
	BedrockProfile  string          `mapstructure:"bedrock_profile"`
	OllamaEndpoint  string          `mapstructure:"ollama_endpoint"`
	OllamaModel     string          `mapstructure:"ollama_model"`
	OllamaToolMode  string          `mapstructure:"ollama_tool_mode"` // auto, native or prompt
	TimeoutSeconds  int             `mapstructure:"timeout_seconds"`
	MaxTokens       int             `mapstructure:"max_tokens"`
	Temperature     float64         `mapstructure:"temperature"`
	Retry           RetryConfig     `mapstructure:"retry"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RetryConfig bounds the gateway retry loop.
type RetryConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	InitialDelayMs int `mapstructure:"initial_delay_ms"`
}

// RateLimitConfig limits calls to the backend.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Concurrency       int64   `mapstructure:"concurrency"`
}

// PersonaConfig locates persona files.
type PersonaConfig struct {
	Dir string `mapstructure:"dir"`
	Key string `mapstructure:"key"`
}

// StoreConfig identifies the store the terminal serves.
type StoreConfig struct {
	ID             string `mapstructure:"id"`
	Currency       string `mapstructure:"currency"`
	CurrencyPlaces int32  `mapstructure:"currency_places"`
}

// CatalogConfig selects the product catalog. When DB is set the SQLite
// catalog is used, otherwise Fixture is loaded into memory.
type CatalogConfig struct {
	DB      string `mapstructure:"db"`
	Fixture string `mapstructure:"fixture"`
}

// LedgerConfig selects the transaction ledger. An empty endpoint keeps
// transactions in memory.
type LedgerConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	TerminalID string `mapstructure:"terminal_id"`
}

// SessionConfig tunes sessions.
type SessionConfig struct {
	HistoryWindow int `mapstructure:"history_window"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig exposes Prometheus metrics. An empty address disables the
// endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoadConfig reads the config file, environment and bound flags.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/posassist/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	loadSecretsFromKeyring(&config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	if c.Persona.Key == "" {
		return fmt.Errorf("persona.key is required")
	}
	if c.Store.ID == "" {
		return fmt.Errorf("store.id is required")
	}
	if c.Store.Currency == "" {
		return fmt.Errorf("store.currency is required")
	}
	if c.Store.CurrencyPlaces < 0 || c.Store.CurrencyPlaces > 4 {
		return fmt.Errorf("store.currency_places must be between 0 and 4, got %d", c.Store.CurrencyPlaces)
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		return fmt.Errorf("llm.retry.max_attempts must be at least 1")
	}
	switch c.LLM.OllamaToolMode {
	case "", "auto", "native", "prompt":
	default:
		return fmt.Errorf("llm.ollama_tool_mode must be auto, native or prompt, got %q", c.LLM.OllamaToolMode)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.anthropic_api_key", "")
	viper.SetDefault("llm.anthropic_model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("llm.bedrock_region", "")
	viper.SetDefault("llm.bedrock_model_id", "us.anthropic.claude-sonnet-4-5-20250929-v1:0")
	viper.SetDefault("llm.bedrock_profile", "")
	viper.SetDefault("llm.ollama_endpoint", "http://localhost:11434")
	viper.SetDefault("llm.ollama_model", "llama3.1:8b")
	viper.SetDefault("llm.ollama_tool_mode", "auto")
	viper.SetDefault("llm.timeout_seconds", 60)
	viper.SetDefault("llm.max_tokens", 1024)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.retry.max_attempts", 3)
	viper.SetDefault("llm.retry.initial_delay_ms", 250)
	viper.SetDefault("llm.rate_limit.enabled", false)
	viper.SetDefault("llm.rate_limit.requests_per_minute", 120)
	viper.SetDefault("llm.rate_limit.concurrency", 4)

	viper.SetDefault("persona.dir", "personas")
	viper.SetDefault("persona.key", "barista")

	viper.SetDefault("store.id", "uptown")
	viper.SetDefault("store.currency", "USD")
	viper.SetDefault("store.currency_places", 2)

	viper.SetDefault("catalog.fixture", "data/catalog.yaml")
	viper.SetDefault("catalog.db", "")

	viper.SetDefault("ledger.endpoint", "")
	viper.SetDefault("ledger.terminal_id", "POSASSIST_01")

	viper.SetDefault("session.history_window", 6)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")

	viper.SetDefault("metrics.addr", "")
}
