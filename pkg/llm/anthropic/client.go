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

// Package anthropic is the hosted Claude backend. It supports native tool
// calls.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/teradata-labs/loom-pos/pkg/llm"
)

const (
	// DefaultAnthropicModel is the default Claude model
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	// DefaultMaxTokens bounds a single reply
	DefaultMaxTokens = 1024
	// DefaultTemperature keeps ordering replies stable
	DefaultTemperature = 0.2
	// DefaultTimeout is the HTTP client timeout
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // Empty uses the SDK default
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client implements llm.Provider on the Anthropic SDK. The SDK's own retry
// loop is disabled; the gateway owns retries.
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClient creates a new Anthropic client. The API key falls back to
// ANTHROPIC_API_KEY.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required (set ANTHROPIC_API_KEY or llm.anthropic.api_key)")
	}
	if config.Model == "" {
		config.Model = DefaultAnthropicModel
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Client{
		client:      anthropic.NewClient(opts...),
		model:       config.Model,
		maxTokens:   int64(config.MaxTokens),
		temperature: config.Temperature,
	}, nil
}

// Info reports the backend identity.
func (c *Client) Info() llm.ProviderInfo {
	return llm.ProviderInfo{
		Name:                "anthropic",
		Model:               c.model,
		IsLocal:             false,
		SupportsNativeTools: true,
	}
}

// Ping lists a single model, which needs a valid key but no tokens.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(1)})
	return c.wrapError(err)
}

// Complete sends the prompt as a single user message.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithTools(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// CompleteWithTools sends the prompt with tool definitions attached.
func (c *Client) CompleteWithTools(ctx context.Context, prompt string, tools []llm.ToolSpec) (*llm.Completion, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if len(tools) > 0 {
		sdkTools, err := convertTools(tools)
		if err != nil {
			return nil, err
		}
		toolUnions := make([]anthropic.ToolUnionParam, len(sdkTools))
		for i := range sdkTools {
			toolUnions[i] = anthropic.ToolUnionParam{OfTool: &sdkTools[i]}
		}
		params.Tools = toolUnions
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, c.wrapError(err)
	}
	return convertResponse(message), nil
}

func convertTools(tools []llm.ToolSpec) ([]anthropic.ToolParam, error) {
	out := make([]anthropic.ToolParam, 0, len(tools))
	for _, tool := range tools {
		var schema struct {
			Properties map[string]interface{} `json:"properties"`
			Required   []string               `json:"required"`
		}
		if len(tool.Parameters) > 0 {
			if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("invalid schema for tool %s: %w", tool.Name, err)
			}
		}
		if schema.Properties == nil {
			schema.Properties = map[string]interface{}{}
		}
		param := anthropic.ToolParam{
			Name:        tool.Name,
			InputSchema: anthropic.ToolInputSchemaParam{Properties: schema.Properties, Required: schema.Required},
		}
		if tool.Description != "" {
			param.Description = anthropic.String(tool.Description)
		}
		out = append(out, param)
	}
	return out, nil
}

func convertResponse(message *anthropic.Message) *llm.Completion {
	completion := &llm.Completion{}
	var text strings.Builder
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			completion.ToolCalls = append(completion.ToolCalls, llm.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	completion.Text = text.String()
	return completion
}

// wrapError attaches the HTTP status so the gateway can classify it.
func (c *Client) wrapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llm.NewProviderError("anthropic", apiErr.StatusCode, err)
	}
	return err
}
