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
// Package bedrock is the AWS Bedrock backend, built on the Converse API. It
// supports native tool calls.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/teradata-labs/loom-pos/pkg/llm"
)

const (
	// DefaultModelID is a cross-region Claude inference profile
	DefaultModelID = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	// DefaultRegion is used when neither config nor AWS_REGION name one
	DefaultRegion = "us-east-1"
	// DefaultMaxTokens bounds a single reply
	DefaultMaxTokens = 1024
	// DefaultTemperature keeps ordering replies stable
	DefaultTemperature = 0.2
)

// Config holds configuration for the Bedrock client. With no static keys
// and no profile the default AWS credential chain is used.
type Config struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ModelID         string
	MaxTokens       int
	Temperature     float64

	// BaseURL overrides the runtime endpoint
	BaseURL string
}

// converseAPI is the slice of the runtime client this backend calls.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements llm.Provider on bedrockruntime. SDK retries are
// disabled; the gateway owns retries.
type Client struct {
	api         converseAPI
	creds       aws.CredentialsProvider
	modelID     string
	maxTokens   int32
	temperature float32
}

// NewClient loads AWS configuration and creates a runtime client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	case cfg.Profile != "":
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	runtime := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.Retryer = aws.NopRetryer{}
		if cfg.BaseURL != "" {
			o.BaseEndpoint = aws.String(cfg.BaseURL)
		}
	})
	return &Client{
		api:         runtime,
		creds:       awsCfg.Credentials,
		modelID:     cfg.ModelID,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
	}, nil
}

// Info reports the backend identity.
func (c *Client) Info() llm.ProviderInfo {
	return llm.ProviderInfo{
		Name:                "bedrock",
		Model:               c.modelID,
		IsLocal:             false,
		SupportsNativeTools: true,
	}
}

// Ping resolves credentials. The runtime API has no call that is free of
// tokens, so reachability of the endpoint itself is not checked.
func (c *Client) Ping(ctx context.Context) error {
	if c.creds == nil {
		return errors.New("bedrock: no AWS credentials configured")
	}
	if _, err := c.creds.Retrieve(ctx); err != nil {
		return fmt.Errorf("bedrock: resolve credentials: %w", err)
	}
	return nil
}

// Complete sends the prompt as a single user message.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.CompleteWithTools(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// CompleteWithTools sends the prompt through Converse with a tool
// configuration attached.
func (c *Client) CompleteWithTools(ctx context.Context, prompt string, tools []llm.ToolSpec) (*llm.Completion, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		Messages: []bedrocktypes.Message{{
			Role:    bedrocktypes.ConversationRoleUser,
			Content: []bedrocktypes.ContentBlock{&bedrocktypes.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &bedrocktypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTokens),
			Temperature: aws.Float32(c.temperature),
		},
	}
	if len(tools) > 0 {
		toolConfig, err := convertTools(tools)
		if err != nil {
			return nil, err
		}
		input.ToolConfig = toolConfig
	}

	output, err := c.api.Converse(ctx, input)
	if err != nil {
		return nil, wrapError(err)
	}
	return convertOutput(output)
}

func convertTools(tools []llm.ToolSpec) (*bedrocktypes.ToolConfiguration, error) {
	out := make([]bedrocktypes.Tool, 0, len(tools))
	for _, tool := range tools {
		schema := map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		if len(tool.Parameters) > 0 {
			if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("invalid schema for tool %s: %w", tool.Name, err)
			}
		}
		spec := bedrocktypes.ToolSpecification{
			Name:        aws.String(tool.Name),
			InputSchema: &bedrocktypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}
		if tool.Description != "" {
			spec.Description = aws.String(tool.Description)
		}
		out = append(out, &bedrocktypes.ToolMemberToolSpec{Value: spec})
	}
	return &bedrocktypes.ToolConfiguration{Tools: out}, nil
}

func convertOutput(output *bedrockruntime.ConverseOutput) (*llm.Completion, error) {
	completion := &llm.Completion{}
	msg, ok := output.Output.(*bedrocktypes.ConverseOutputMemberMessage)
	if !ok {
		return completion, nil
	}
	var text strings.Builder
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *bedrocktypes.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *bedrocktypes.ContentBlockMemberToolUse:
			args := json.RawMessage("{}")
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return nil, fmt.Errorf("decode input of %s: %w", aws.ToString(b.Value.Name), err)
				}
				args = raw
			}
			completion.ToolCalls = append(completion.ToolCalls, llm.ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	completion.Text = text.String()
	return completion, nil
}

// wrapError attaches the HTTP status so the gateway can classify it.
func wrapError(err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return llm.NewProviderError("bedrock", respErr.HTTPStatusCode(), err)
	}
	return err
}
