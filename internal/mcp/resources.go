package mcp

import (
	"context"
	"encoding/json"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) templates(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(map[string]any{
		"categories": catalog.Categories,
		"templates":  catalog.StandardTemplates,
	})
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
