// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package router resolves capability names to backend clients and forwards
// capability calls.
//
// Resolution queries live backend catalogs at call time, in the registry's
// stable name order, and picks the first backend exposing the requested
// capability. Backends without a session are skipped, and a catalog error
// from one backend never fails the lookup, it just excludes that backend.
package router

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/logger"
)

// Registry is the backend set the router resolves against.
type Registry interface {
	List() []bridge.BackendClient
}

// Tool is a tool annotated with the backend that exposes it.
type Tool struct {
	bridge.Tool
	Backend string `json:"backend"`
}

// Prompt is a prompt annotated with the backend that exposes it.
type Prompt struct {
	bridge.Prompt
	Backend string `json:"backend"`
}

// Router forwards capability calls to the first backend that serves them.
type Router struct {
	registry Registry
}

// New creates a router over the given registry.
func New(registry Registry) *Router {
	return &Router{registry: registry}
}

// ListTools aggregates the tool catalogs of all connected backends. The
// backends are queried concurrently; results keep registry name order. A
// backend that fails to answer is logged and omitted; partial results are
// better than none.
func (r *Router) ListTools(ctx context.Context) ([]Tool, error) {
	clients := r.registry.List()
	perBackend := make([][]Tool, len(clients))

	var g errgroup.Group
	for i, c := range clients {
		session := c.Session()
		if session == nil {
			continue
		}
		g.Go(func() error {
			backendTools, err := session.ListTools(ctx)
			if err != nil {
				logger.Warnf("Failed to list tools from backend %s: %v", c.Name(), err)
				return nil
			}
			for _, t := range backendTools {
				perBackend[i] = append(perBackend[i], Tool{Tool: t, Backend: c.Name()})
			}
			return nil
		})
	}
	_ = g.Wait()

	var tools []Tool
	for _, bt := range perBackend {
		tools = append(tools, bt...)
	}
	return tools, nil
}

// ListPrompts aggregates the prompt catalogs of all connected backends,
// queried concurrently, results in registry name order.
func (r *Router) ListPrompts(ctx context.Context) ([]Prompt, error) {
	clients := r.registry.List()
	perBackend := make([][]Prompt, len(clients))

	var g errgroup.Group
	for i, c := range clients {
		session := c.Session()
		if session == nil {
			continue
		}
		g.Go(func() error {
			backendPrompts, err := session.ListPrompts(ctx)
			if err != nil {
				logger.Warnf("Failed to list prompts from backend %s: %v", c.Name(), err)
				return nil
			}
			for _, p := range backendPrompts {
				perBackend[i] = append(perBackend[i], Prompt{Prompt: p, Backend: c.Name()})
			}
			return nil
		})
	}
	_ = g.Wait()

	var prompts []Prompt
	for _, bp := range perBackend {
		prompts = append(prompts, bp...)
	}
	return prompts, nil
}

// ResolveTool finds the backend serving the named tool. When several
// backends expose the same name, the first in stable registry order wins,
// so resolution is deterministic for a given backend set.
func (r *Router) ResolveTool(ctx context.Context, name string) (bridge.BackendClient, error) {
	for _, c := range r.registry.List() {
		session := c.Session()
		if session == nil {
			continue
		}
		tools, err := session.ListTools(ctx)
		if err != nil {
			logger.Warnf("Failed to list tools from backend %s during resolution: %v", c.Name(), err)
			continue
		}
		for _, t := range tools {
			if t.Name == name {
				logger.Debugf("Resolved tool %s to backend %s", name, c.Name())
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", bridge.ErrToolNotFound, name)
}

// ResolvePrompt finds the backend serving the named prompt, first match in
// stable registry order.
func (r *Router) ResolvePrompt(ctx context.Context, name string) (bridge.BackendClient, error) {
	for _, c := range r.registry.List() {
		session := c.Session()
		if session == nil {
			continue
		}
		prompts, err := session.ListPrompts(ctx)
		if err != nil {
			logger.Warnf("Failed to list prompts from backend %s during resolution: %v", c.Name(), err)
			continue
		}
		for _, p := range prompts {
			if p.Name == name {
				logger.Debugf("Resolved prompt %s to backend %s", name, c.Name())
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", bridge.ErrPromptNotFound, name)
}

// CallTool resolves the named tool and invokes it on the owning backend.
func (r *Router) CallTool(ctx context.Context, name string, arguments map[string]any) (*bridge.ToolCallResult, error) {
	c, err := r.ResolveTool(ctx, name)
	if err != nil {
		return nil, err
	}
	session := c.Session()
	if session == nil {
		return nil, fmt.Errorf("%w: %s", bridge.ErrNotConnected, c.Name())
	}
	return session.CallTool(ctx, name, arguments)
}

// GetPrompt resolves the named prompt and retrieves it from the owning
// backend.
func (r *Router) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*bridge.PromptGetResult, error) {
	c, err := r.ResolvePrompt(ctx, name)
	if err != nil {
		return nil, err
	}
	session := c.Session()
	if session == nil {
		return nil, fmt.Errorf("%w: %s", bridge.ErrNotConnected, c.Name())
	}
	return session.GetPrompt(ctx, name, arguments)
}
