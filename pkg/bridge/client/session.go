// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/mcp-bridge/pkg/bridge"
	"github.com/stacklok/mcp-bridge/pkg/logger"
)

// mcpSession adapts a live mark3labs MCP client to the bridge.Session
// interface. It exists only while the owning Client is connected.
type mcpSession struct {
	backend string
	client  *mcpclient.Client
}

var _ bridge.Session = (*mcpSession)(nil)

// ListTools returns the backend's current tool catalog, following
// pagination cursors until exhausted.
func (s *mcpSession) ListTools(ctx context.Context) ([]bridge.Tool, error) {
	var tools []bridge.Tool
	var cursor mcp.Cursor
	for {
		req := mcp.ListToolsRequest{}
		req.Params.Cursor = cursor
		result, err := s.client.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to list tools from backend %s: %w", s.backend, err)
		}
		for _, tool := range result.Tools {
			tools = append(tools, convertTool(tool))
		}
		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}
	return tools, nil
}

// ListPrompts returns the backend's current prompt catalog, following
// pagination cursors until exhausted.
func (s *mcpSession) ListPrompts(ctx context.Context) ([]bridge.Prompt, error) {
	var prompts []bridge.Prompt
	var cursor mcp.Cursor
	for {
		req := mcp.ListPromptsRequest{}
		req.Params.Cursor = cursor
		result, err := s.client.ListPrompts(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to list prompts from backend %s: %w", s.backend, err)
		}
		for _, prompt := range result.Prompts {
			prompts = append(prompts, convertPrompt(prompt))
		}
		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}
	return prompts, nil
}

// CallTool invokes a tool on the backend. A result with IsError set is a
// protocol-level outcome and is returned to the caller, not an error.
func (s *mcpSession) CallTool(ctx context.Context, name string, arguments map[string]any) (*bridge.ToolCallResult, error) {
	result, err := s.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tool call %s failed on backend %s: %w", name, s.backend, err)
	}

	if result.IsError {
		logger.Warnf("Tool %s on backend %s reported an error result", name, s.backend)
	}

	content := make([]bridge.Content, len(result.Content))
	for i, item := range result.Content {
		content[i] = convertContent(item)
	}
	return &bridge.ToolCallResult{
		Content: content,
		IsError: result.IsError,
	}, nil
}

// GetPrompt retrieves a prompt from the backend.
func (s *mcpSession) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*bridge.PromptGetResult, error) {
	result, err := s.client.GetPrompt(ctx, mcp.GetPromptRequest{
		Params: mcp.GetPromptParams{
			Name:      name,
			Arguments: arguments,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("prompt get %s failed on backend %s: %w", name, s.backend, err)
	}

	messages := make([]bridge.PromptMessage, len(result.Messages))
	for i, msg := range result.Messages {
		messages[i] = bridge.PromptMessage{
			Role:    string(msg.Role),
			Content: convertContent(msg.Content),
		}
	}
	return &bridge.PromptGetResult{
		Description: result.Description,
		Messages:    messages,
	}, nil
}

// Close terminates the underlying protocol client.
func (s *mcpSession) Close() error {
	return s.client.Close()
}

// convertTool converts a protocol tool to the bridge representation. The
// input schema is flattened to a plain map because the bridge treats it as
// opaque.
func convertTool(tool mcp.Tool) bridge.Tool {
	inputSchema := map[string]any{
		"type": tool.InputSchema.Type,
	}
	if tool.InputSchema.Properties != nil {
		inputSchema["properties"] = tool.InputSchema.Properties
	}
	if len(tool.InputSchema.Required) > 0 {
		inputSchema["required"] = tool.InputSchema.Required
	}
	return bridge.Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: inputSchema,
	}
}

// convertPrompt converts a protocol prompt to the bridge representation.
func convertPrompt(prompt mcp.Prompt) bridge.Prompt {
	args := make([]bridge.PromptArgument, len(prompt.Arguments))
	for i, arg := range prompt.Arguments {
		args[i] = bridge.PromptArgument{
			Name:        arg.Name,
			Description: arg.Description,
			Required:    arg.Required,
		}
	}
	return bridge.Prompt{
		Name:        prompt.Name,
		Description: prompt.Description,
		Arguments:   args,
	}
}

// convertContent converts protocol content to the bridge representation.
func convertContent(content mcp.Content) bridge.Content {
	if textContent, ok := mcp.AsTextContent(content); ok {
		return bridge.Content{
			Type: "text",
			Text: textContent.Text,
		}
	}
	if imageContent, ok := mcp.AsImageContent(content); ok {
		return bridge.Content{
			Type:     "image",
			Data:     imageContent.Data,
			MimeType: imageContent.MIMEType,
		}
	}
	if audioContent, ok := mcp.AsAudioContent(content); ok {
		return bridge.Content{
			Type:     "audio",
			Data:     audioContent.Data,
			MimeType: audioContent.MIMEType,
		}
	}
	logger.Warnf("Encountered unknown content type %T, marking as unknown content", content)
	return bridge.Content{Type: "unknown"}
}
