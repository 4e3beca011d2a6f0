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
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom-pos/pkg/types"
)

// Generation is the result of GenerateWithTools. Invocations is empty for
// backends without native tool calls.
type Generation struct {
	Text        string
	Invocations []types.ToolInvocation
}

// Gateway is the capability-tagged contract the engine talks to.
type Gateway interface {
	// ProviderInfo reports the backend behind the gateway.
	ProviderInfo() ProviderInfo

	// IsAvailable performs a cheap health probe. It never fails; an
	// unreachable backend reports false.
	IsAvailable(ctx context.Context) bool

	// Generate returns the model's text reply.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithTools returns prose plus any native tool invocations.
	GenerateWithTools(ctx context.Context, prompt string, schemas []types.ToolSchema) (*Generation, error)
}

// InstructionFunc renders tool schemas as prompt instructions for backends
// without native tool calls.
type InstructionFunc func(schemas []types.ToolSchema) string

// GatewayConfig configures NewGateway.
type GatewayConfig struct {
	Retry RetryConfig

	// Instructions folds schemas into the prompt on the text strategy.
	// Required for backends without native tools.
	Instructions InstructionFunc

	// ProbeTimeout bounds IsAvailable
	ProbeTimeout time.Duration

	Logger *zap.Logger
}

// NewGateway picks the strategy once from the provider's capabilities.
func NewGateway(p Provider, config GatewayConfig) (Gateway, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 2 * time.Second
	}
	info := p.Info()
	base := gatewayBase{
		provider: p,
		info:     info,
		config:   config,
		retrier: &retrier{
			config:   config.Retry.withDefaults(),
			provider: info.Name,
			logger:   config.Logger,
		},
	}

	if info.SupportsNativeTools {
		config.Logger.Debug("gateway strategy selected",
			zap.String("provider", info.Name),
			zap.String("model", info.Model),
			zap.String("strategy", "native"))
		return &nativeGateway{gatewayBase: base}, nil
	}
	if config.Instructions == nil {
		return nil, fmt.Errorf("provider %s has no native tool support and no instruction renderer was configured", info.Name)
	}
	config.Logger.Debug("gateway strategy selected",
		zap.String("provider", info.Name),
		zap.String("model", info.Model),
		zap.String("strategy", "text"))
	return &textGateway{gatewayBase: base}, nil
}

// gatewayBase holds what both strategies share.
type gatewayBase struct {
	provider Provider
	info     ProviderInfo
	config   GatewayConfig
	retrier  *retrier
}

func (g *gatewayBase) ProviderInfo() ProviderInfo {
	return g.info
}

func (g *gatewayBase) IsAvailable(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.config.Logger.Error("provider health probe panicked",
				zap.String("provider", g.info.Name),
				zap.Any("panic", r))
			ok = false
		}
	}()
	probeCtx, cancel := context.WithTimeout(ctx, g.config.ProbeTimeout)
	defer cancel()
	if err := g.provider.Ping(probeCtx); err != nil {
		g.config.Logger.Debug("provider unavailable",
			zap.String("provider", g.info.Name),
			zap.Error(err))
		return false
	}
	return true
}

func (g *gatewayBase) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := g.retrier.do(ctx, "generate", func(ctx context.Context) error {
		var err error
		text, err = g.provider.Complete(ctx, prompt)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// nativeGateway issues one tool-enabled call and decodes the backend's
// tool calls directly.
type nativeGateway struct {
	gatewayBase
}

func (g *nativeGateway) GenerateWithTools(ctx context.Context, prompt string, schemas []types.ToolSchema) (*Generation, error) {
	specs, err := ToolSpecs(schemas)
	if err != nil {
		return nil, err
	}

	var completion *Completion
	err = g.retrier.do(ctx, "generate_with_tools", func(ctx context.Context) error {
		var err error
		completion, err = g.provider.CompleteWithTools(ctx, prompt, specs)
		return err
	})
	if err != nil {
		return nil, err
	}

	gen := &Generation{Text: completion.Text}
	for _, call := range completion.ToolCalls {
		gen.Invocations = append(gen.Invocations, decodeToolCall(call))
	}
	return gen, nil
}

// decodeToolCall converts a backend tool call. Native calls carry full
// confidence: the backend either called the function or it did not.
func decodeToolCall(call ToolCall) types.ToolInvocation {
	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}
	args := map[string]interface{}{}
	if len(call.Arguments) > 0 {
		// Undecodable arguments reach the dispatcher as an empty map and
		// fail schema validation there.
		_ = json.Unmarshal(call.Arguments, &args)
	}
	return types.ToolInvocation{
		ID:           id,
		Name:         call.Name,
		RawArguments: string(call.Arguments),
		Arguments:    args,
		Confidence:   1.0,
		Origin:       types.OriginNative,
	}
}

// textGateway folds the schemas into the prompt and leaves command
// recovery to the extractor.
type textGateway struct {
	gatewayBase
}

func (g *textGateway) GenerateWithTools(ctx context.Context, prompt string, schemas []types.ToolSchema) (*Generation, error) {
	if len(schemas) > 0 {
		prompt = prompt + "\n\n" + g.config.Instructions(schemas)
	}
	text, err := g.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &Generation{Text: text}, nil
}

// ToolSpecs converts schemas to the backend wire shape.
func ToolSpecs(schemas []types.ToolSchema) ([]ToolSpec, error) {
	specs := make([]ToolSpec, 0, len(schemas))
	for _, s := range schemas {
		params := s.Parameters
		if params == nil {
			params = types.NewObjectSchema("", map[string]*types.JSONSchema{}, nil)
		}
		raw, err := params.ToJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema for %s: %w", s.Name, err)
		}
		specs = append(specs, ToolSpec{Name: s.Name, Description: s.Description, Parameters: raw})
	}
	return specs, nil
}
