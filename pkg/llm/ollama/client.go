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

// Package ollama is the local-model backend. Native tool calls are used only
// for model families known to support them; everything else goes through
// the text contract.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/teradata-labs/loom-pos/pkg/llm"
)

// Models known to support native tool calling (Ollama v0.12.3+)
var toolSupportedModels = []string{
	"llama3.3",
	"llama3.2",
	"llama3.1",
	"qwen2.5",
	"qwen2.5-coder",
	"mistral",
	"mixtral",
	"functionary",
}

// ToolMode defines how tools are handled.
type ToolMode string

const (
	// ToolModeAuto detects native support from the model name
	ToolModeAuto ToolMode = "auto"
	// ToolModeNative forces Ollama's tool calling API
	ToolModeNative ToolMode = "native"
	// ToolModePrompt forces the text contract
	ToolModePrompt ToolMode = "prompt"
)

// Config holds configuration for the Ollama client.
type Config struct {
	Endpoint    string        // Default: http://localhost:11434
	Model       string        // Default: llama3.1
	MaxTokens   int           // Default: model-aware
	Temperature float64       // Default: 0.2
	Timeout     time.Duration // Default: 120s
	ToolMode    ToolMode      // Default: auto
}

// Client implements llm.Provider for Ollama.
type Client struct {
	http        *resty.Client
	model       string
	maxTokens   int
	temperature float64
	toolMode    ToolMode
}

// getDefaultMaxTokens sizes replies by parameter count. Order-taking replies
// are short, so even large models get a modest budget.
func getDefaultMaxTokens(model string) int {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "70b"), strings.Contains(m, "72b"), strings.Contains(m, "405b"):
		return 2048
	case strings.Contains(m, "13b"), strings.Contains(m, "14b"), strings.Contains(m, "32b"):
		return 1536
	default:
		return 1024
	}
}

// NewClient creates a new Ollama client.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = getDefaultMaxTokens(cfg.Model)
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.ToolMode == "" {
		cfg.ToolMode = ToolModeAuto
	}

	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		toolMode:    cfg.ToolMode,
	}
}

// Info reports the backend identity.
func (c *Client) Info() llm.ProviderInfo {
	return llm.ProviderInfo{
		Name:                "ollama",
		Model:               c.model,
		IsLocal:             true,
		SupportsNativeTools: c.supportsNativeTools(),
	}
}

func (c *Client) supportsNativeTools() bool {
	switch c.toolMode {
	case ToolModeNative:
		return true
	case ToolModePrompt:
		return false
	}
	for _, base := range toolSupportedModels {
		if strings.HasPrefix(c.model, base) {
			return true
		}
	}
	return false
}

// Ping lists local models.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/tags")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return llm.NewProviderError("ollama", resp.StatusCode(), fmt.Errorf("%s", strings.TrimSpace(resp.String())))
	}
	return nil
}

// Complete sends the prompt and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.chat(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// CompleteWithTools sends the prompt with tool definitions.
func (c *Client) CompleteWithTools(ctx context.Context, prompt string, tools []llm.ToolSpec) (*llm.Completion, error) {
	apiTools := make([]ollamaTool, 0, len(tools))
	for _, t := range tools {
		apiTools = append(apiTools, ollamaTool{
			Type: "function",
			Function: ollamaFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	resp, err := c.chat(ctx, prompt, apiTools)
	if err != nil {
		return nil, err
	}
	return c.convertResponse(resp), nil
}

func (c *Client) chat(ctx context.Context, prompt string, tools []ollamaTool) (*chatResponse, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Tools:    tools,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/chat")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, llm.NewProviderError("ollama", resp.StatusCode(),
			fmt.Errorf("API error: %s", strings.TrimSpace(resp.String())))
	}
	return &out, nil
}

// cleanJSONString removes common formatting issues from JSON strings.
func cleanJSONString(s string) string {
	s = strings.TrimSpace(s)

	// Strip surrounding backticks
	s = strings.Trim(s, "`")

	// Strip a "json" language marker
	if len(s) > 4 && strings.HasPrefix(s, "json") {
		if r := s[4]; r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			s = s[4:]
		}
	}
	return strings.TrimSpace(s)
}

func (c *Client) convertResponse(resp *chatResponse) *llm.Completion {
	completion := &llm.Completion{Text: resp.Message.Content}
	for _, tc := range resp.Message.ToolCalls {
		var args json.RawMessage
		switch v := tc.Function.Arguments.(type) {
		case string:
			args = json.RawMessage(cleanJSONString(v))
		case nil:
			args = nil
		default:
			raw, err := json.Marshal(v)
			if err == nil {
				args = raw
			}
		}
		completion.ToolCalls = append(completion.ToolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return completion
}

// Ollama API types

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Tools    []ollamaTool           `json:"tools,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string      `json:"name"`
	Arguments interface{} `json:"arguments"` // Can be string or map
}

type chatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// Ensure Client implements llm.Provider.
var _ llm.Provider = (*Client)(nil)
