// Package resources implements MCP resource handlers for the memory layer.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (mem://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chengjon/mem-claude/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handler manages memory resource endpoints.
type Handler struct {
	store *store.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(st *store.Store) *Handler {
	return &Handler{store: st}
}

// StatusResource returns the MCP resource definition for memory status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		"mem://status",
		"Memory Status",
		mcp.WithResourceDescription("Record counts and known projects in the persistent memory database"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current database statistics as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.store.Stats()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
