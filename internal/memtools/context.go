package memtools

import (
	"context"
	"fmt"

	"github.com/chengjon/mem-claude/internal/synth"
	"github.com/mark3labs/mcp-go/mcp"
)

// ContextTool handles the mem_context MCP tool.
type ContextTool struct {
	engine *synth.Engine
}

// NewContextTool creates a ContextTool.
func NewContextTool(engine *synth.Engine) *ContextTool {
	return &ContextTool{engine: engine}
}

// Definition returns the MCP tool definition for mem_context.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_context",
		mcp.WithDescription(
			"Render the full context briefing for a project: a chronological index of past "+
				"observations and session summaries with their token economics. Use at the start "+
				"of a session to see what prior work exists before re-investigating anything.",
		),
		mcp.WithString("cwd",
			mcp.Required(),
			mcp.Description("Working directory of the project to brief on"),
		),
		mcp.WithString("session_id",
			mcp.Description("Current session id, excluded when looking up the previous assistant message"),
		),
	)
}

// Handle processes the mem_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cwd := req.GetString("cwd", "")
	if cwd == "" {
		return mcp.NewToolResultError("'cwd' is required"), nil
	}

	out, err := t.engine.Generate(synth.Request{
		Cwd:       cwd,
		SessionID: req.GetString("session_id", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("context generation failed: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}
