// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/bridge/router"
	"github.com/stacklok/mcp-bridge/pkg/logger"
)

// PromptRoutes defines the routes for the prompt API.
type PromptRoutes struct {
	router CapabilityRouter
}

// PromptsRouter creates a new router for the prompt API.
func PromptsRouter(router CapabilityRouter) http.Handler {
	routes := PromptRoutes{router: router}

	r := chi.NewRouter()
	r.Get("/", routes.listPrompts)
	r.Post("/{name}", routes.getPrompt)
	return r
}

type getPromptRequest struct {
	Arguments map[string]string `json:"arguments"`
}

// listPrompts
//
//	@Summary		List available prompts
//	@Description	List the prompts exposed by all connected backends
//	@Tags			prompts
//	@Produce		json
//	@Success		200	{array}	router.Prompt
//	@Router			/api/v1beta/prompts [get]
func (p *PromptRoutes) listPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := p.router.ListPrompts(r.Context())
	if err != nil {
		logger.Errorf("Failed to list prompts: %v", err)
		http.Error(w, "Failed to list prompts", http.StatusInternalServerError)
		return
	}
	if prompts == nil {
		prompts = []router.Prompt{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(prompts); err != nil {
		http.Error(w, "Failed to encode prompt list", http.StatusInternalServerError)
	}
}

// getPrompt
//
//	@Summary		Get a prompt
//	@Description	Retrieve the named prompt from the first backend that exposes it
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			name	path	string				true	"Prompt name"
//	@Param			get		body	getPromptRequest	true	"Prompt arguments"
//	@Success		200	{object}	bridge.PromptGetResult
//	@Failure		404	{string}	string	"Prompt not found"
//	@Failure		502	{string}	string	"Backend call failed"
//	@Router			/api/v1beta/prompts/{name} [post]
func (p *PromptRoutes) getPrompt(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req getPromptRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, err := p.router.GetPrompt(r.Context(), name, req.Arguments)
	if err != nil {
		if errors.Is(err, bridge.ErrPromptNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.Errorf("Prompt get %s failed: %v", name, err)
		http.Error(w, "Prompt get failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		http.Error(w, "Failed to encode prompt result", http.StatusInternalServerError)
	}
}
