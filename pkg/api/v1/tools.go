// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/bridge/router"
	"github.com/stacklok/mcp-bridge/pkg/logger"
)

// CapabilityRouter resolves and forwards capability calls. Implemented by
// the bridge router; abstracted so handler tests can use fakes.
type CapabilityRouter interface {
	ListTools(ctx context.Context) ([]router.Tool, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (*bridge.ToolCallResult, error)
	ListPrompts(ctx context.Context) ([]router.Prompt, error)
	GetPrompt(ctx context.Context, name string, arguments map[string]string) (*bridge.PromptGetResult, error)
}

// ToolRoutes defines the routes for the tool API.
type ToolRoutes struct {
	router CapabilityRouter
}

// ToolsRouter creates a new router for the tool API.
func ToolsRouter(router CapabilityRouter) http.Handler {
	routes := ToolRoutes{router: router}

	r := chi.NewRouter()
	r.Get("/", routes.listTools)
	r.Post("/{name}/call", routes.callTool)
	return r
}

type callToolRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// listTools
//
//	@Summary		List available tools
//	@Description	List the tools exposed by all connected backends
//	@Tags			tools
//	@Produce		json
//	@Success		200	{array}	router.Tool
//	@Router			/api/v1beta/tools [get]
func (t *ToolRoutes) listTools(w http.ResponseWriter, r *http.Request) {
	tools, err := t.router.ListTools(r.Context())
	if err != nil {
		logger.Errorf("Failed to list tools: %v", err)
		http.Error(w, "Failed to list tools", http.StatusInternalServerError)
		return
	}
	if tools == nil {
		tools = []router.Tool{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tools); err != nil {
		http.Error(w, "Failed to encode tool list", http.StatusInternalServerError)
	}
}

// callTool
//
//	@Summary		Call a tool
//	@Description	Invoke the named tool on the first backend that exposes it
//	@Tags			tools
//	@Accept			json
//	@Produce		json
//	@Param			name	path	string			true	"Tool name"
//	@Param			call	body	callToolRequest	true	"Tool arguments"
//	@Success		200	{object}	bridge.ToolCallResult
//	@Failure		404	{string}	string	"Tool not found"
//	@Failure		502	{string}	string	"Backend call failed"
//	@Router			/api/v1beta/tools/{name}/call [post]
func (t *ToolRoutes) callTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req callToolRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, err := t.router.CallTool(r.Context(), name, req.Arguments)
	if err != nil {
		if errors.Is(err, bridge.ErrToolNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.Errorf("Tool call %s failed: %v", name, err)
		http.Error(w, "Tool call failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		http.Error(w, "Failed to encode tool result", http.StatusInternalServerError)
	}
}
