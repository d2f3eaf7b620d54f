package synth

import (
	"fmt"

	"github.com/chengjon/mem-claude/internal/logging"
	"github.com/chengjon/mem-claude/internal/store"
)

// summaryOverfetch is how many extra summaries load beyond the display
// count. Each displayed summary after the first is stamped with the time
// of the chronologically previous one, so the window needs one lookbehind.
const summaryOverfetch = 1

// Engine assembles the context briefing from the store.
type Engine struct {
	store *store.Store
	opts  Options
	log   *logging.Logger
}

// NewEngine creates a context synthesis engine.
func NewEngine(st *store.Store, opts Options, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.New("synth")
	}
	return &Engine{store: st, opts: opts, log: log}
}

// Request identifies the session asking for context.
type Request struct {
	Cwd       string
	SessionID string // current session's external id; excluded from transcript lookup
	Colors    bool
}

// Generate builds the full context briefing for a project. With nothing
// recorded yet it returns a short placeholder rather than an empty page.
func (e *Engine) Generate(req Request) (string, error) {
	project := ProjectName(req.Cwd)

	observations, err := e.store.ListObservations(store.ListOptions{
		Project:  project,
		Types:    e.opts.ObservationTypes,
		Concepts: e.opts.ObservationConcepts,
		Limit:    e.opts.TotalObservationCount,
	})
	if err != nil {
		return "", fmt.Errorf("synth: load observations: %w", err)
	}

	summaries, err := e.store.RecentSummaries(project, e.opts.SessionCount+summaryOverfetch)
	if err != nil {
		return "", fmt.Errorf("synth: load summaries: %w", err)
	}

	assistantMessage := ""
	if e.opts.ShowLastMessage && len(observations) > 0 {
		assistantMessage = e.priorAssistantMessage(req, observations)
	}

	r := renderer{
		opts:    e.opts,
		project: project,
		cwd:     req.Cwd,
		colors:  req.Colors,
	}
	return r.render(observations, summaries, assistantMessage), nil
}

// priorAssistantMessage digs the last assistant reply out of the most
// recent transcript belonging to a different session. Failures degrade to
// an empty string; the briefing renders without the block.
func (e *Engine) priorAssistantMessage(req Request, observations []store.Observation) string {
	for _, o := range observations {
		if o.AgentSessionID == req.SessionID {
			continue
		}
		path := TranscriptPath(req.Cwd, o.AgentSessionID)
		return LastAssistantMessage(path)
	}
	return ""
}
