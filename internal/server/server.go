// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations
// and injects them into the tools that depend on them. No business
// logic lives here, only wiring.
package server

import (
	"fmt"

	"github.com/chengjon/mem-claude/internal/config"
	"github.com/chengjon/mem-claude/internal/logging"
	"github.com/chengjon/mem-claude/internal/memtools"
	"github.com/chengjon/mem-claude/internal/resources"
	"github.com/chengjon/mem-claude/internal/store"
	"github.com/chengjon/mem-claude/internal/synth"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with the memory tools
// registered.
//
// The returned cleanup function closes the store's database connection
// and must be called on shutdown (typically via defer). It is always
// non-nil and safe to call even if initialization failed.
func New(settings *config.Settings) (*server.MCPServer, func(), error) {
	log := logging.New("mcp")

	st, err := store.New(store.Config{
		DataDir: settings.DataDir(),
		Logger:  log,
	})
	if err != nil {
		return nil, noop, fmt.Errorf("opening memory store: %w", err)
	}
	cleanup := func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn("store_close_failed", nil, cerr)
		}
	}

	engine := synth.NewEngine(st, synth.OptionsFromSettings(settings), log)

	s := server.NewMCPServer(
		"mem-claude",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	searchTool := memtools.NewSearchTool(st)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	timelineTool := memtools.NewTimelineTool(st)
	s.AddTool(timelineTool.Definition(), timelineTool.Handle)

	contextTool := memtools.NewContextTool(engine)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	resourceHandler := resources.NewHandler(st)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s, cleanup, nil
}

// noop is a no-op cleanup used when initialization fails before the
// store is open.
func noop() {}

// serverInstructions tells the AI how to use the memory tools
// effectively.
func serverInstructions() string {
	return `You have access to a persistent memory of past coding sessions.

## RETRIEVAL PATTERN

Work progressively, cheapest first:
1. mem_context — the briefing for a project. Run it once at session start.
2. mem_search — keyword search over all stored observations. Use plain
   words; combine with operator=OR for broader matches.
3. mem_timeline — chronological context around one search result. Use it
   to understand what happened before and after an observation.

Prefer reading a stored observation over re-investigating files: each
observation records work that already cost tokens to discover.

## WHEN TO SEARCH

Search memory BEFORE exploring the codebase when the user:
- Asks about a past decision, bug, or change
- Mentions something "we did before" or "last time"
- Starts work in a project you have briefed on previously

Do not search for trivia the current files answer directly.`
}
