// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"

	"github.com/stacklok/mcp-bridge/pkg/config"
)

// State is the lifecycle state of one backend client.
type State string

const (
	// StateConstructed means the client exists but Start was never called.
	StateConstructed State = "constructed"

	// StateStarting means Start is in flight: the transport is being
	// established or the handshake has not completed yet.
	StateStarting State = "starting"

	// StateConnected means the handshake completed and a session is present.
	StateConnected State = "connected"

	// StateStopped means Stop ran and all transport resources are released.
	StateStopped State = "stopped"

	// StateFailed means Start could not establish a session. A failed client
	// holds no session and is skipped by the router.
	StateFailed State = "failed"
)

// BackendClient manages the connection lifecycle of one backend MCP server.
// Implemented by the client package; the registry and router depend on this
// interface so tests can substitute fakes.
type BackendClient interface {
	// Name returns the backend name this client serves.
	Name() string

	// Config returns the descriptor this client was created from.
	Config() config.ServerConfig

	// State returns the current lifecycle state.
	State() State

	// Session returns the live session, or nil when not connected.
	Session() Session

	// Start establishes the transport and performs the handshake.
	Start(ctx context.Context) error

	// Stop releases all transport resources. Idempotent.
	Stop(ctx context.Context) error
}

// Session is the live, post-handshake handle used to issue capability calls
// to one backend. It is provided by the protocol library; the bridge treats
// it purely as a capability set and never sees transport wire details.
//
// A nil session is the routine "not connected" condition, not an error.
type Session interface {
	// ListTools returns the backend's current tool catalog.
	ListTools(ctx context.Context) ([]Tool, error)

	// ListPrompts returns the backend's current prompt catalog.
	ListPrompts(ctx context.Context) ([]Prompt, error)

	// CallTool invokes a tool on the backend.
	CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error)

	// GetPrompt retrieves a prompt from the backend.
	GetPrompt(ctx context.Context, name string, arguments map[string]string) (*PromptGetResult, error)

	// Close terminates the session.
	Close() error
}

// Tool represents an MCP tool capability exposed by a backend.
type Tool struct {
	// Name is the tool name, unique within one backend's catalog.
	// Names may collide across backends; the router resolves collisions
	// first-match-wins by registry order.
	Name string `json:"name"`

	// Description describes what the tool does.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON Schema for tool parameters, opaque to the
	// bridge.
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// Prompt represents an MCP prompt capability exposed by a backend.
type Prompt struct {
	// Name is the prompt name, unique within one backend's catalog.
	Name string `json:"name"`

	// Description describes the prompt.
	Description string `json:"description,omitempty"`

	// Arguments are the prompt parameters.
	Arguments []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument represents a prompt parameter.
type PromptArgument struct {
	// Name is the argument name.
	Name string `json:"name"`

	// Description describes the argument.
	Description string `json:"description,omitempty"`

	// Required indicates if the argument is mandatory.
	Required bool `json:"required,omitempty"`
}

// Content represents one item of MCP content (text, image, audio).
type Content struct {
	// Type indicates the content type: "text", "image", "audio".
	Type string `json:"type"`

	// Text is the content text (for text content).
	Text string `json:"text,omitempty"`

	// Data is the base64-encoded payload (for image and audio content).
	Data string `json:"data,omitempty"`

	// MimeType is the MIME type (for image and audio content).
	MimeType string `json:"mimeType,omitempty"`
}

// ToolCallResult wraps a tool call response.
type ToolCallResult struct {
	// Content is the tool output.
	Content []Content `json:"content"`

	// IsError indicates the tool itself reported a failure. This is a
	// protocol-level outcome, not a transport error.
	IsError bool `json:"isError,omitempty"`
}

// PromptMessage is one message of a prompt response.
type PromptMessage struct {
	// Role is the message role ("user", "assistant").
	Role string `json:"role,omitempty"`

	// Content is the message content.
	Content Content `json:"content"`
}

// PromptGetResult wraps a prompt response.
type PromptGetResult struct {
	// Description is an optional description of the prompt.
	Description string `json:"description,omitempty"`

	// Messages are the prompt messages.
	Messages []PromptMessage `json:"messages"`
}
