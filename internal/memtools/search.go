package memtools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chengjon/mem-claude/internal/search"
	"github.com/chengjon/mem-claude/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// SearchTool handles the mem_search MCP tool.
type SearchTool struct {
	store *store.Store
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(st *store.Store) *SearchTool {
	return &SearchTool{store: st}
}

// Definition returns the MCP tool definition for mem_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_search",
		mcp.WithDescription(
			"Search your persistent memory across all sessions. Use this to find past decisions, "+
				"bugs fixed, patterns used, files changed, or any context from previous coding sessions. "+
				"Results are ranked by relevance; drill into one with mem_timeline.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search keywords, comma separated. Example: 'migration, sqlite'"),
		),
		mcp.WithString("operator",
			mcp.Description("How keywords combine: AND (default) requires all, OR matches any"),
		),
		mcp.WithString("project",
			mcp.Description("Filter by project name"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 20)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Pagination offset (default: 0)"),
		),
	)
}

// Handle processes the mem_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	op := strings.ToUpper(req.GetString("operator", "AND"))
	project := req.GetString("project", "")
	limit := intArg(req, "limit", 10)
	if limit > 20 {
		limit = 20
	}
	offset := intArg(req, "offset", 0)

	page, err := t.store.SearchObservations(splitKeywords(query), op, project, offset, limit)
	if err != nil {
		if errors.Is(err, search.ErrNoValidKeywords) {
			return mcp.NewToolResultError("no usable keywords in query; use plain words without wildcards"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(page.Items) == 0 {
		return mcp.NewToolResultText("No memories found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories (showing %d):\n\n", page.Total, len(page.Items))

	for i, r := range page.Items {
		title := derefOr(r.Title, "(untitled)")
		when := time.UnixMilli(r.CreatedAtEpoch).Local().Format("Jan 2, 2006")

		fmt.Fprintf(&b, "[%d] #%d (%s) - %s\n", offset+i+1, r.ID, r.Type, title)
		if sub := derefOr(r.Subtitle, ""); sub != "" {
			fmt.Fprintf(&b, "    %s\n", snippet(sub, 300))
		}
		fmt.Fprintf(&b, "    %s | %s\n\n", r.Project, when)
	}

	if page.HasMore {
		fmt.Fprintf(&b, "More results available; repeat with offset=%d.\n", offset+len(page.Items))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
