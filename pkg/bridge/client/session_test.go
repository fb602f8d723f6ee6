// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"

	"github.com/stacklok/mcp-bridge/pkg/bridge"
)

func TestConvertContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  mcp.Content
		expected bridge.Content
	}{
		{
			name:     "text content",
			content:  mcp.TextContent{Type: "text", Text: "hello"},
			expected: bridge.Content{Type: "text", Text: "hello"},
		},
		{
			name:     "image content",
			content:  mcp.ImageContent{Type: "image", Data: "aGVsbG8=", MIMEType: "image/png"},
			expected: bridge.Content{Type: "image", Data: "aGVsbG8=", MimeType: "image/png"},
		},
		{
			name:     "audio content",
			content:  mcp.AudioContent{Type: "audio", Data: "aGVsbG8=", MIMEType: "audio/wav"},
			expected: bridge.Content{Type: "audio", Data: "aGVsbG8=", MimeType: "audio/wav"},
		},
		{
			name:     "unknown content type",
			content:  mcp.EmbeddedResource{Type: "resource"},
			expected: bridge.Content{Type: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, convertContent(tt.content))
		})
	}
}

func TestConvertTool(t *testing.T) {
	t.Parallel()

	tool := mcp.Tool{
		Name:        "search",
		Description: "Search the web",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{"type": "string"},
			},
			Required: []string{"query"},
		},
	}

	converted := convertTool(tool)
	assert.Equal(t, "search", converted.Name)
	assert.Equal(t, "Search the web", converted.Description)
	assert.Equal(t, "object", converted.InputSchema["type"])
	assert.Equal(t, []string{"query"}, converted.InputSchema["required"])
	assert.Contains(t, converted.InputSchema["properties"], "query")
}

func TestConvertPrompt(t *testing.T) {
	t.Parallel()

	prompt := mcp.Prompt{
		Name:        "summarize",
		Description: "Summarize a document",
		Arguments: []mcp.PromptArgument{
			{Name: "topic", Description: "What to summarize", Required: true},
			{Name: "style"},
		},
	}

	converted := convertPrompt(prompt)
	assert.Equal(t, "summarize", converted.Name)
	assert.Len(t, converted.Arguments, 2)
	assert.True(t, converted.Arguments[0].Required)
	assert.False(t, converted.Arguments[1].Required)
}
