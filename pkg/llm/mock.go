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
	"sync"
)

// MockReply is one scripted backend response.
type MockReply struct {
	Text      string
	ToolCalls []ToolCall
	Err       error

	// Block makes the call wait for context cancellation
	Block bool
}

// MockProvider is a scripted Provider for tests and offline demos. Replies
// are consumed in order; once exhausted the last reply repeats.
type MockProvider struct {
	info ProviderInfo

	mu      sync.Mutex
	replies []MockReply
	prompts []string
	calls   int
	pingErr error
}

// NewMockProvider creates a mock with the given capabilities.
func NewMockProvider(native bool, replies ...MockReply) *MockProvider {
	return &MockProvider{
		info: ProviderInfo{
			Name:                "mock",
			Model:               "scripted",
			IsLocal:             true,
			SupportsNativeTools: native,
		},
		replies: replies,
	}
}

// Script appends replies.
func (m *MockProvider) Script(replies ...MockReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

// SetPingError makes Ping fail.
func (m *MockProvider) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

// Calls returns the number of completion calls made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns every prompt received.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockProvider) Info() ProviderInfo { return m.info }

func (m *MockProvider) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}

func (m *MockProvider) Complete(ctx context.Context, prompt string) (string, error) {
	reply, err := m.next(ctx, prompt)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

func (m *MockProvider) CompleteWithTools(ctx context.Context, prompt string, tools []ToolSpec) (*Completion, error) {
	reply, err := m.next(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &Completion{Text: reply.Text, ToolCalls: reply.ToolCalls}, nil
}

func (m *MockProvider) next(ctx context.Context, prompt string) (MockReply, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	var reply MockReply
	if len(m.replies) > 0 {
		idx := m.calls
		if idx >= len(m.replies) {
			idx = len(m.replies) - 1
		}
		reply = m.replies[idx]
	}
	m.calls++
	m.mu.Unlock()

	if reply.Block {
		<-ctx.Done()
		return MockReply{}, ctx.Err()
	}
	if reply.Err != nil {
		return MockReply{}, reply.Err
	}
	return reply, nil
}
