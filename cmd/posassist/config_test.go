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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestLoadConfig_Defaults(t *testing.T) {
	keyring.MockInit()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())
	t.Setenv("POSASSIST_LLM_ANTHROPIC_API_KEY", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, "barista", cfg.Persona.Key)
	assert.Equal(t, "uptown", cfg.Store.ID)
	assert.Equal(t, int32(2), cfg.Store.CurrencyPlaces)
	assert.Equal(t, "data/catalog.yaml", cfg.Catalog.Fixture)
	assert.Empty(t, cfg.Ledger.Endpoint)
	assert.Equal(t, 6, cfg.Session.HistoryWindow)
	assert.Empty(t, cfg.LLM.AnthropicAPIKey)
}

func TestLoadConfig_KeyringSecrets(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want string
	}{
		{name: "keyring fills empty key", want: "from-keyring"},
		{name: "env wins over keyring", env: "from-env", want: "from-env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyring.MockInit()
			require.NoError(t, keyring.Set(ServiceName, "anthropic_api_key", "from-keyring"))
			viper.Reset()
			t.Cleanup(viper.Reset)
			t.Chdir(t.TempDir())
			t.Setenv("ANTHROPIC_API_KEY", "")
			if tt.env != "" {
				t.Setenv("POSASSIST_LLM_ANTHROPIC_API_KEY", tt.env)
			}

			cfg, err := LoadConfig("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.LLM.AnthropicAPIKey)
		})
	}
}

func TestListAvailableSecretKeys(t *testing.T) {
	assert.Equal(t, []string{"anthropic_api_key"}, ListAvailableSecretKeys())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	keyring.MockInit()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "posassist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: anthropic
  retry:
    max_attempts: 5
persona:
  key: kopitiam
store:
  id: kopitiam
  currency: SGD
`), 0o600))
	t.Setenv("POSASSIST_STORE_CURRENCY", "MYR")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, "kopitiam", cfg.Persona.Key)
	assert.Equal(t, "kopitiam", cfg.Store.ID)
	assert.Equal(t, "MYR", cfg.Store.Currency)
}

func TestLoadConfig_Bedrock(t *testing.T) {
	keyring.MockInit()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "posassist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: bedrock
  bedrock_region: ap-southeast-1
  bedrock_profile: pos
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "bedrock", cfg.LLM.Provider)
	assert.Equal(t, "ap-southeast-1", cfg.LLM.BedrockRegion)
	assert.Equal(t, "pos", cfg.LLM.BedrockProfile)
	assert.Equal(t, "us.anthropic.claude-sonnet-4-5-20250929-v1:0", cfg.LLM.BedrockModelID)
}

func TestLoadConfig_BadFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "posassist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			LLM:     LLMConfig{Retry: RetryConfig{MaxAttempts: 3}, OllamaToolMode: "auto"},
			Persona: PersonaConfig{Key: "barista"},
			Store:   StoreConfig{ID: "uptown", Currency: "USD", CurrencyPlaces: 2},
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "no persona", mutate: func(c *Config) { c.Persona.Key = "" }, wantErr: "persona.key"},
		{name: "no store", mutate: func(c *Config) { c.Store.ID = "" }, wantErr: "store.id"},
		{name: "no currency", mutate: func(c *Config) { c.Store.Currency = "" }, wantErr: "store.currency"},
		{name: "bad places", mutate: func(c *Config) { c.Store.CurrencyPlaces = 9 }, wantErr: "currency_places"},
		{name: "no attempts", mutate: func(c *Config) { c.LLM.Retry.MaxAttempts = 0 }, wantErr: "max_attempts"},
		{name: "bad tool mode", mutate: func(c *Config) { c.LLM.OllamaToolMode = "magic" }, wantErr: "ollama_tool_mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
