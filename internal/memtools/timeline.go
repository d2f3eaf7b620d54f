package memtools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chengjon/mem-claude/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// TimelineTool handles the mem_timeline MCP tool.
type TimelineTool struct {
	store *store.Store
}

// NewTimelineTool creates a TimelineTool.
func NewTimelineTool(st *store.Store) *TimelineTool {
	return &TimelineTool{store: st}
}

// Definition returns the MCP tool definition for mem_timeline.
func (t *TimelineTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_timeline",
		mcp.WithDescription(
			"Show chronological context around a specific observation. Use after mem_search "+
				"to drill into the timeline of events surrounding a search result. This is the "+
				"progressive disclosure pattern: search first, then timeline to understand context.",
		),
		mcp.WithNumber("observation_id",
			mcp.Description("The observation ID to center the timeline on (from mem_search results)"),
		),
		mcp.WithNumber("timestamp",
			mcp.Description("Epoch milliseconds to center on instead of an observation ID"),
		),
		mcp.WithNumber("radius",
			mcp.Description("Observations to include on each side of the anchor (default: 5)"),
		),
		mcp.WithString("project",
			mcp.Description("Restrict the timeline to one project"),
		),
	)
}

// timelineRow is one merged entry: a prompt, an observation, or a summary.
type timelineRow struct {
	epoch int64
	line  string
	focus bool
}

// Handle processes the mem_timeline tool call.
func (t *TimelineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	obsID := int64(intArg(req, "observation_id", 0))
	timestamp := int64(intArg(req, "timestamp", 0))
	if obsID == 0 && timestamp == 0 {
		return mcp.NewToolResultError("'observation_id' or 'timestamp' is required"), nil
	}

	radius := intArg(req, "radius", 5)
	project := req.GetString("project", "")

	var (
		tl  *store.Timeline
		err error
	)
	if obsID != 0 {
		tl, err = t.store.TimelineAroundObservation(obsID, radius, project)
	} else {
		tl, err = t.store.TimelineAroundTimestamp(timestamp, radius, project)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("timeline failed: %v", err)), nil
	}

	rows := mergeRows(tl, obsID)
	if len(rows) == 0 {
		return mcp.NewToolResultText("No activity found in that range."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Timeline %s to %s (%d entries):\n\n",
		time.UnixMilli(tl.RangeStart).Local().Format("Jan 2, 3:04 PM"),
		time.UnixMilli(tl.RangeEnd).Local().Format("Jan 2, 3:04 PM"),
		len(rows),
	)
	for _, r := range rows {
		if r.focus {
			fmt.Fprintf(&b, ">>> %s <<<\n", r.line)
		} else {
			fmt.Fprintf(&b, "%s\n", r.line)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

// mergeRows flattens the three timeline collections into one list in
// chronological order.
func mergeRows(tl *store.Timeline, focusID int64) []timelineRow {
	var rows []timelineRow

	for _, p := range tl.Prompts {
		rows = append(rows, timelineRow{
			epoch: p.CreatedAtEpoch,
			line: fmt.Sprintf("%s  prompt %d: %s",
				time.UnixMilli(p.CreatedAtEpoch).Local().Format("3:04 PM"),
				p.PromptNumber, snippet(p.PromptText, 120)),
		})
	}
	for _, o := range tl.Observations {
		title := derefOr(o.Title, derefOr(o.Text, "(untitled)"))
		rows = append(rows, timelineRow{
			epoch: o.CreatedAtEpoch,
			focus: o.ID == focusID,
			line: fmt.Sprintf("%s  #%d [%s] %s",
				time.UnixMilli(o.CreatedAtEpoch).Local().Format("3:04 PM"),
				o.ID, o.Type, snippet(title, 120)),
		})
	}
	for _, s := range tl.Summaries {
		rows = append(rows, timelineRow{
			epoch: s.CreatedAtEpoch,
			line: fmt.Sprintf("%s  #S%d session summary: %s",
				time.UnixMilli(s.CreatedAtEpoch).Local().Format("3:04 PM"),
				s.ID, snippet(derefOr(s.Request, ""), 120)),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].epoch < rows[j].epoch })
	return rows
}
