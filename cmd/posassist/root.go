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

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teradata-labs/loom-pos/internal/log"
	"github.com/teradata-labs/loom-pos/internal/version"
)

var (
	cfgFile string
	config  *Config
)

var rootCmd = &cobra.Command{
	Use:   "posassist",
	Short: "Conversational point-of-sale assistant",
	Long: heredoc.Doc(`
		posassist takes customer orders in natural language, turns model tool
		calls into cart and payment operations, and keeps the order in step
		with the conversation.

		Configuration is read from ./posassist.yaml or /etc/posassist/, then
		POSASSIST_* environment variables, then flags. The Anthropic API key
		may also live in the system keyring (see 'posassist keys').`),
	Version: version.String(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		logger, err := log.New(config.Logging.Level, config.Logging.Format)
		if err != nil {
			return err
		}
		log.SetLogger(logger)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	err := rootCmd.Execute()
	// stderr may not support fsync; nothing to report if so
	_ = log.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./posassist.yaml)")

	// LLM flags
	flags.String("llm-provider", "ollama", "model provider (anthropic, bedrock, ollama, mock)")
	flags.String("anthropic-key", "", "Anthropic API key (or ANTHROPIC_API_KEY)")
	flags.String("anthropic-model", "claude-sonnet-4-5-20250929", "Anthropic model")
	flags.String("bedrock-region", "", "AWS region for Bedrock (or AWS_REGION)")
	flags.String("bedrock-model", "us.anthropic.claude-sonnet-4-5-20250929-v1:0", "Bedrock model or inference profile id")
	flags.String("bedrock-profile", "", "AWS shared config profile for Bedrock")
	flags.String("ollama-endpoint", "http://localhost:11434", "Ollama endpoint")
	flags.String("ollama-model", "llama3.1:8b", "Ollama model")
	flags.String("ollama-tool-mode", "auto", "Ollama tool mode (auto, native, prompt)")
	flags.Int("llm-timeout", 60, "per-call model timeout in seconds")

	// Domain flags
	flags.String("persona-dir", "personas", "directory holding persona files")
	flags.String("persona", "barista", "persona key")
	flags.String("store", "uptown", "store id")
	flags.String("currency", "USD", "store currency code")
	flags.String("catalog-db", "", "SQLite catalog path (empty uses the YAML fixture)")
	flags.String("catalog-fixture", "data/catalog.yaml", "YAML catalog fixture")
	flags.String("ledger-endpoint", "", "POS kernel endpoint (empty keeps transactions in memory)")
	flags.Int("history-window", 6, "conversation exchanges kept per session")

	// Observability flags
	flags.String("metrics-addr", "", "address for the Prometheus endpoint, e.g. :9090 (empty disables)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	for key, flag := range map[string]string{
		"llm.provider":           "llm-provider",
		"llm.anthropic_api_key":  "anthropic-key",
		"llm.anthropic_model":    "anthropic-model",
		"llm.bedrock_region":     "bedrock-region",
		"llm.bedrock_model_id":   "bedrock-model",
		"llm.bedrock_profile":    "bedrock-profile",
		"llm.ollama_endpoint":    "ollama-endpoint",
		"llm.ollama_model":       "ollama-model",
		"llm.ollama_tool_mode":   "ollama-tool-mode",
		"llm.timeout_seconds":    "llm-timeout",
		"persona.dir":            "persona-dir",
		"persona.key":            "persona",
		"store.id":               "store",
		"store.currency":         "currency",
		"catalog.db":             "catalog-db",
		"catalog.fixture":        "catalog-fixture",
		"ledger.endpoint":        "ledger-endpoint",
		"session.history_window": "history-window",
		"metrics.addr":           "metrics-addr",
		"logging.level":          "log-level",
		"logging.format":         "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(chatCmd, personasCmd, catalogCmd, keysCmd)
}
