// Package memtools provides MCP tool handlers for the persistent memory
// layer.
//
// Each tool handler follows the same pattern:
// - A struct with dependencies (store.Store, synth.Engine) injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Tools are retrieval tools: search finds memories, timeline shows the
// events around one, context renders the full briefing.
package memtools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// splitKeywords turns a comma or space separated query into keyword terms.
func splitKeywords(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return r == ','
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// snippet truncates s to max runes, appending an ellipsis when cut.
func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
