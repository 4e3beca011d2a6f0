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

// Package factory builds model backends from configuration.
package factory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/teradata-labs/loom-pos/pkg/llm"
	"github.com/teradata-labs/loom-pos/pkg/llm/anthropic"
	"github.com/teradata-labs/loom-pos/pkg/llm/bedrock"
	"github.com/teradata-labs/loom-pos/pkg/llm/ollama"
)

// ProviderFactory creates model backends based on configuration.
type ProviderFactory struct {
	config FactoryConfig
}

// FactoryConfig holds configuration for creating backends.
type FactoryConfig struct {
	// Default provider to use
	DefaultProvider string
	DefaultModel    string

	// Anthropic configuration
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	// AWS Bedrock configuration. Empty keys and profile use the default
	// credential chain.
	BedrockRegion          string
	BedrockProfile         string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockSessionToken    string
	BedrockModelID         string

	// Ollama configuration
	OllamaEndpoint string
	OllamaModel    string
	OllamaToolMode string

	// Common settings
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// RateLimit wraps every backend when enabled
	RateLimit llm.RateLimiterConfig

	// Metrics instruments every backend when set
	Metrics *llm.ProviderMetrics
}

// NewProviderFactory creates a new provider factory.
func NewProviderFactory(config FactoryConfig) *ProviderFactory {
	if config.DefaultProvider == "" {
		config.DefaultProvider = "ollama"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &ProviderFactory{config: config}
}

// Providers lists the supported backend names.
func Providers() []string {
	names := []string{"anthropic", "bedrock", "ollama", "mock"}
	sort.Strings(names)
	return names
}

// CreateProvider creates a backend. Empty arguments fall back to the
// configured defaults.
func (f *ProviderFactory) CreateProvider(provider, model string) (llm.Provider, error) {
	if provider == "" {
		provider = f.config.DefaultProvider
	}
	if model == "" {
		model = f.config.DefaultModel
	}

	var (
		p   llm.Provider
		err error
	)
	switch provider {
	case "anthropic":
		p, err = f.createAnthropicProvider(model)
	case "bedrock":
		p, err = f.createBedrockProvider(model)
	case "ollama":
		p = f.createOllamaProvider(model)
	case "mock":
		// Offline demo backend: always answers with a fixed greeting.
		p = llm.NewMockProvider(false, llm.MockReply{Text: "Hi there! What can I get started for you?"})
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: %v)", provider, Providers())
	}
	if err != nil {
		return nil, err
	}

	if f.config.RateLimit.Enabled {
		p = llm.NewRateLimitedProvider(p, f.config.RateLimit)
	}
	if f.config.Metrics != nil {
		p = llm.NewInstrumentedProvider(p, f.config.Metrics)
	}
	return p, nil
}

func (f *ProviderFactory) createAnthropicProvider(model string) (llm.Provider, error) {
	apiKey := f.config.AnthropicAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}
	if model == "" {
		model = f.config.AnthropicModel
	}
	return anthropic.NewClient(anthropic.Config{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     f.config.AnthropicBaseURL,
		MaxTokens:   f.config.MaxTokens,
		Temperature: f.config.Temperature,
		Timeout:     f.config.Timeout,
	})
}

func (f *ProviderFactory) createBedrockProvider(model string) (llm.Provider, error) {
	if model == "" {
		model = f.config.BedrockModelID
	}
	return bedrock.NewClient(context.Background(), bedrock.Config{
		Region:          f.config.BedrockRegion,
		Profile:         f.config.BedrockProfile,
		AccessKeyID:     f.config.BedrockAccessKeyID,
		SecretAccessKey: f.config.BedrockSecretAccessKey,
		SessionToken:    f.config.BedrockSessionToken,
		ModelID:         model,
		MaxTokens:       f.config.MaxTokens,
		Temperature:     f.config.Temperature,
	})
}

func (f *ProviderFactory) createOllamaProvider(model string) llm.Provider {
	if model == "" {
		model = f.config.OllamaModel
	}
	return ollama.NewClient(ollama.Config{
		Endpoint:    f.config.OllamaEndpoint,
		Model:       model,
		MaxTokens:   f.config.MaxTokens,
		Temperature: f.config.Temperature,
		Timeout:     f.config.Timeout,
		ToolMode:    ollama.ToolMode(f.config.OllamaToolMode),
	})
}

// IsProviderAvailable reports whether a provider has the credentials it
// needs. It does not contact the backend.
func (f *ProviderFactory) IsProviderAvailable(provider string) bool {
	switch provider {
	case "anthropic":
		return f.config.AnthropicAPIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != ""
	case "bedrock":
		return (f.config.BedrockAccessKeyID != "" && f.config.BedrockSecretAccessKey != "") ||
			f.config.BedrockProfile != "" ||
			os.Getenv("AWS_ACCESS_KEY_ID") != "" || os.Getenv("AWS_PROFILE") != ""
	case "ollama", "mock":
		return true
	default:
		return false
	}
}
