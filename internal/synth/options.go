// Package synth generates the session-start context briefing: a ranked,
// date-bucketed digest of past observations and session summaries with
// token economics, rendered as markdown or ANSI terminal output.
package synth

import "github.com/chengjon/mem-claude/internal/config"

// Options controls which observations are surfaced and how they render.
type Options struct {
	TotalObservationCount int
	FullObservationCount  int
	SessionCount          int
	ObservationTypes      []string
	ObservationConcepts   []string
	FullObservationField  string // "narrative" or "facts"
	ShowReadTokens        bool
	ShowWorkTokens        bool
	ShowSavingsAmount     bool
	ShowSavingsPercent    bool
	ShowLastSummary       bool
	ShowLastMessage       bool
}

// DefaultOptions mirrors the documented settings defaults.
func DefaultOptions() Options {
	return Options{
		TotalObservationCount: 50,
		FullObservationCount:  5,
		SessionCount:          10,
		ObservationTypes:      []string{"bugfix", "feature", "refactor", "change", "discovery", "decision"},
		ObservationConcepts:   []string{"how-it-works", "why-it-exists", "what-changed", "problem-solution", "gotcha", "pattern", "trade-off"},
		FullObservationField:  "narrative",
		ShowReadTokens:        true,
		ShowWorkTokens:        true,
		ShowSavingsAmount:     true,
		ShowSavingsPercent:    true,
		ShowLastSummary:       true,
		ShowLastMessage:       false,
	}
}

// OptionsFromSettings builds Options from the loaded settings file.
func OptionsFromSettings(s *config.Settings) Options {
	def := DefaultOptions()
	opts := Options{
		TotalObservationCount: s.GetInt(config.KeyObservations, def.TotalObservationCount),
		FullObservationCount:  s.GetInt(config.KeyFullCount, def.FullObservationCount),
		SessionCount:          s.GetInt(config.KeySessionCount, def.SessionCount),
		ObservationTypes:      s.GetList(config.KeyObservationTypes),
		ObservationConcepts:   s.GetList(config.KeyObservationTopics),
		FullObservationField:  s.Get(config.KeyFullField),
		ShowReadTokens:        s.GetBool(config.KeyShowReadTokens),
		ShowWorkTokens:        s.GetBool(config.KeyShowWorkTokens),
		ShowSavingsAmount:     s.GetBool(config.KeyShowSavings),
		ShowSavingsPercent:    s.GetBool(config.KeyShowSavingsPct),
		ShowLastSummary:       s.GetBool(config.KeyShowLastSummary),
		ShowLastMessage:       s.GetBool(config.KeyShowLastMessage),
	}
	if len(opts.ObservationTypes) == 0 {
		opts.ObservationTypes = def.ObservationTypes
	}
	if len(opts.ObservationConcepts) == 0 {
		opts.ObservationConcepts = def.ObservationConcepts
	}
	if opts.FullObservationField == "" {
		opts.FullObservationField = def.FullObservationField
	}
	return opts
}
