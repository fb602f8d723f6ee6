// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/bridge/router"
	"github.com/stacklok/mcp-bridge/pkg/config"
)

// fakeSession serves a fixed catalog and records calls.
type fakeSession struct {
	tools    []bridge.Tool
	prompts  []bridge.Prompt
	listErr  error
	toolCall string
}

func (s *fakeSession) ListTools(context.Context) ([]bridge.Tool, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tools, nil
}

func (s *fakeSession) ListPrompts(context.Context) ([]bridge.Prompt, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.prompts, nil
}

func (s *fakeSession) CallTool(_ context.Context, name string, _ map[string]any) (*bridge.ToolCallResult, error) {
	s.toolCall = name
	return &bridge.ToolCallResult{
		Content: []bridge.Content{{Type: "text", Text: "ok"}},
	}, nil
}

func (s *fakeSession) GetPrompt(_ context.Context, name string, _ map[string]string) (*bridge.PromptGetResult, error) {
	return &bridge.PromptGetResult{
		Messages: []bridge.PromptMessage{{Role: "user", Content: bridge.Content{Type: "text", Text: name}}},
	}, nil
}

func (*fakeSession) Close() error { return nil }

// fakeBackend is a connected or sessionless backend for routing tests.
type fakeBackend struct {
	name    string
	session bridge.Session
}

func (f *fakeBackend) Name() string                { return f.name }
func (f *fakeBackend) Config() config.ServerConfig { return config.ServerConfig{Command: f.name} }
func (f *fakeBackend) Session() bridge.Session {
	if f.session == nil {
		return nil
	}
	return f.session
}
func (f *fakeBackend) State() bridge.State {
	if f.session == nil {
		return bridge.StateFailed
	}
	return bridge.StateConnected
}
func (*fakeBackend) Start(context.Context) error { return nil }
func (*fakeBackend) Stop(context.Context) error  { return nil }

// fakeRegistry returns backends in a fixed, stable order.
type fakeRegistry struct {
	backends []bridge.BackendClient
}

func (r *fakeRegistry) List() []bridge.BackendClient { return r.backends }

func toolsNamed(names ...string) []bridge.Tool {
	tools := make([]bridge.Tool, len(names))
	for i, name := range names {
		tools[i] = bridge.Tool{Name: name}
	}
	return tools
}

func promptsNamed(names ...string) []bridge.Prompt {
	prompts := make([]bridge.Prompt, len(names))
	for i, name := range names {
		prompts[i] = bridge.Prompt{Name: name}
	}
	return prompts
}

func TestRouter_ResolveTool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		backends        []bridge.BackendClient
		toolName        string
		expectedBackend string
		expectedErr     error
	}{
		{
			name: "single backend serves the tool",
			backends: []bridge.BackendClient{
				&fakeBackend{name: "alpha", session: &fakeSession{tools: toolsNamed("search")}},
			},
			toolName:        "search",
			expectedBackend: "alpha",
		},
		{
			name: "first match wins on name collision",
			backends: []bridge.BackendClient{
				&fakeBackend{name: "alpha", session: &fakeSession{tools: toolsNamed("search")}},
				&fakeBackend{name: "beta", session: &fakeSession{tools: toolsNamed("search")}},
			},
			toolName:        "search",
			expectedBackend: "alpha",
		},
		{
			name: "sessionless backend is skipped",
			backends: []bridge.BackendClient{
				&fakeBackend{name: "alpha"},
				&fakeBackend{name: "beta", session: &fakeSession{tools: toolsNamed("search")}},
			},
			toolName:        "search",
			expectedBackend: "beta",
		},
		{
			name: "catalog error excludes the backend but not the lookup",
			backends: []bridge.BackendClient{
				&fakeBackend{name: "alpha", session: &fakeSession{listErr: errors.New("connection reset")}},
				&fakeBackend{name: "beta", session: &fakeSession{tools: toolsNamed("search")}},
			},
			toolName:        "search",
			expectedBackend: "beta",
		},
		{
			name: "not found",
			backends: []bridge.BackendClient{
				&fakeBackend{name: "alpha", session: &fakeSession{tools: toolsNamed("search")}},
			},
			toolName:    "missing",
			expectedErr: bridge.ErrToolNotFound,
		},
		{
			name:        "no backends at all",
			backends:    nil,
			toolName:    "search",
			expectedErr: bridge.ErrToolNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rtr := router.New(&fakeRegistry{backends: tt.backends})
			backend, err := rtr.ResolveTool(context.Background(), tt.toolName)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedBackend, backend.Name())
		})
	}
}

func TestRouter_ResolvePrompt(t *testing.T) {
	t.Parallel()

	backends := []bridge.BackendClient{
		&fakeBackend{name: "alpha"},
		&fakeBackend{name: "beta", session: &fakeSession{prompts: promptsNamed("summarize")}},
		&fakeBackend{name: "gamma", session: &fakeSession{prompts: promptsNamed("summarize", "expand")}},
	}
	rtr := router.New(&fakeRegistry{backends: backends})

	backend, err := rtr.ResolvePrompt(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, "beta", backend.Name())

	backend, err = rtr.ResolvePrompt(context.Background(), "expand")
	require.NoError(t, err)
	assert.Equal(t, "gamma", backend.Name())

	_, err = rtr.ResolvePrompt(context.Background(), "missing")
	assert.ErrorIs(t, err, bridge.ErrPromptNotFound)
}

func TestRouter_ListTools(t *testing.T) {
	t.Parallel()

	backends := []bridge.BackendClient{
		&fakeBackend{name: "alpha", session: &fakeSession{tools: toolsNamed("search", "fetch")}},
		&fakeBackend{name: "beta"},
		&fakeBackend{name: "gamma", session: &fakeSession{listErr: errors.New("timeout")}},
		&fakeBackend{name: "delta", session: &fakeSession{tools: toolsNamed("translate")}},
	}
	rtr := router.New(&fakeRegistry{backends: backends})

	tools, err := rtr.ListTools(context.Background())
	require.NoError(t, err)

	// Partial results: the sessionless and failing backends are omitted.
	require.Len(t, tools, 3)
	assert.Equal(t, "search", tools[0].Name)
	assert.Equal(t, "alpha", tools[0].Backend)
	assert.Equal(t, "translate", tools[2].Name)
	assert.Equal(t, "delta", tools[2].Backend)
}

func TestRouter_ListPrompts(t *testing.T) {
	t.Parallel()

	backends := []bridge.BackendClient{
		&fakeBackend{name: "alpha", session: &fakeSession{prompts: promptsNamed("summarize")}},
		&fakeBackend{name: "beta", session: &fakeSession{prompts: promptsNamed("expand")}},
	}
	rtr := router.New(&fakeRegistry{backends: backends})

	prompts, err := rtr.ListPrompts(context.Background())
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Equal(t, "alpha", prompts[0].Backend)
	assert.Equal(t, "beta", prompts[1].Backend)
}

func TestRouter_CallTool(t *testing.T) {
	t.Parallel()

	alphaSession := &fakeSession{tools: toolsNamed("fetch")}
	betaSession := &fakeSession{tools: toolsNamed("search")}
	backends := []bridge.BackendClient{
		&fakeBackend{name: "alpha", session: alphaSession},
		&fakeBackend{name: "beta", session: betaSession},
	}
	rtr := router.New(&fakeRegistry{backends: backends})

	result, err := rtr.CallTool(context.Background(), "search", map[string]any{"query": "golang"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "ok", result.Content[0].Text)

	// The call went to the backend owning the tool, not the first backend.
	assert.Equal(t, "search", betaSession.toolCall)
	assert.Empty(t, alphaSession.toolCall)

	_, err = rtr.CallTool(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, bridge.ErrToolNotFound)
}

func TestRouter_GetPrompt(t *testing.T) {
	t.Parallel()

	backends := []bridge.BackendClient{
		&fakeBackend{name: "alpha", session: &fakeSession{prompts: promptsNamed("summarize")}},
	}
	rtr := router.New(&fakeRegistry{backends: backends})

	result, err := rtr.GetPrompt(context.Background(), "summarize", map[string]string{"topic": "go"})
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "summarize", result.Messages[0].Content.Text)

	_, err = rtr.GetPrompt(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, bridge.ErrPromptNotFound)
}
