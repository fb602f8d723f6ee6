// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/stacklok/mcp-bridge/pkg/api/v1"
	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/bridge/router"
)

// fakeCapabilityRouter serves fixed catalogs for handler tests.
type fakeCapabilityRouter struct {
	tools   []router.Tool
	prompts []router.Prompt

	calledTool string
	calledArgs map[string]any
	callErr    error
}

func (f *fakeCapabilityRouter) ListTools(context.Context) ([]router.Tool, error) {
	return f.tools, nil
}

func (f *fakeCapabilityRouter) ListPrompts(context.Context) ([]router.Prompt, error) {
	return f.prompts, nil
}

func (f *fakeCapabilityRouter) CallTool(_ context.Context, name string, args map[string]any) (*bridge.ToolCallResult, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	f.calledTool = name
	f.calledArgs = args
	return &bridge.ToolCallResult{Content: []bridge.Content{{Type: "text", Text: "done"}}}, nil
}

func (f *fakeCapabilityRouter) GetPrompt(_ context.Context, name string, _ map[string]string) (*bridge.PromptGetResult, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &bridge.PromptGetResult{
		Messages: []bridge.PromptMessage{{Role: "user", Content: bridge.Content{Type: "text", Text: name}}},
	}, nil
}

func TestListTools(t *testing.T) {
	t.Parallel()

	rtr := &fakeCapabilityRouter{tools: []router.Tool{
		{Tool: bridge.Tool{Name: "search"}, Backend: "alpha"},
		{Tool: bridge.Tool{Name: "fetch"}, Backend: "beta"},
	}}
	srv := httptest.NewServer(v1.ToolsRouter(rtr))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tools []router.Tool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tools))
	require.Len(t, tools, 2)
	assert.Equal(t, "search", tools[0].Name)
	assert.Equal(t, "alpha", tools[0].Backend)
}

func TestListTools_EmptyCatalogIsJSONArray(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(v1.ToolsRouter(&fakeCapabilityRouter{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var tools []router.Tool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tools))
	assert.NotNil(t, tools)
	assert.Empty(t, tools)
}

func TestCallTool(t *testing.T) {
	t.Parallel()

	rtr := &fakeCapabilityRouter{}
	srv := httptest.NewServer(v1.ToolsRouter(rtr))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/search/call", "application/json",
		strings.NewReader(`{"arguments": {"query": "golang"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "search", rtr.calledTool)
	assert.Equal(t, map[string]any{"query": "golang"}, rtr.calledArgs)

	var result bridge.ToolCallResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "done", result.Content[0].Text)
}

func TestCallTool_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		callErr        error
		body           string
		expectedStatus int
	}{
		{
			name:           "tool not found maps to 404",
			callErr:        bridge.ErrToolNotFound,
			body:           `{}`,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "backend failure maps to 502",
			callErr:        bridge.ErrNotConnected,
			body:           `{}`,
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "malformed body maps to 400",
			body:           `{"arguments":`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(v1.ToolsRouter(&fakeCapabilityRouter{callErr: tt.callErr}))
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/search/call", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestGetPrompt(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(v1.PromptsRouter(&fakeCapabilityRouter{}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/summarize", "application/json",
		strings.NewReader(`{"arguments": {"topic": "go"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result bridge.PromptGetResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "summarize", result.Messages[0].Content.Text)
}

func TestGetPrompt_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(v1.PromptsRouter(&fakeCapabilityRouter{callErr: bridge.ErrPromptNotFound}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/missing", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
