package store

import (
	"database/sql"
	"fmt"
)

// ImportResult reports one import attempt. Records that already exist are
// reported as not imported rather than erroring, so replays of the same
// archive are idempotent.
type ImportResult struct {
	Imported bool  `json:"imported"`
	ID       int64 `json:"id"`
}

// ─── Archive import ──────────────────────────────────────────────────────────

// ImportSession inserts a session record with its original timestamps.
// Duplicate detection keys on the external session id.
func (s *Store) ImportSession(sess Session) (*ImportResult, error) {
	var existing int64
	err := s.db.QueryRow(
		"SELECT id FROM sdk_sessions WHERE claude_session_id = ?", sess.ExternalID,
	).Scan(&existing)
	if err == nil {
		return &ImportResult{Imported: false, ID: existing}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("store: import session: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO sdk_sessions (
			claude_session_id, sdk_session_id, project, user_prompt,
			started_at, started_at_epoch, completed_at, completed_at_epoch, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ExternalID, sess.AgentSessionID, sess.Project, sess.UserPrompt,
		sess.StartedAt, sess.StartedAtEpoch, sess.CompletedAt, sess.CompletedAtEpoch, sess.Status)
	if err != nil {
		return nil, fmt.Errorf("store: import session: %w", err)
	}
	id, _ := res.LastInsertId()
	return &ImportResult{Imported: true, ID: id}, nil
}

// ImportObservation inserts an observation with its original timestamps.
// Duplicate detection keys on (session, title, epoch).
func (s *Store) ImportObservation(o Observation) (*ImportResult, error) {
	var existing int64
	err := s.db.QueryRow(`
		SELECT id FROM observations
		WHERE sdk_session_id = ? AND title = ? AND created_at_epoch = ?
	`, o.AgentSessionID, o.Title, o.CreatedAtEpoch).Scan(&existing)
	if err == nil {
		return &ImportResult{Imported: false, ID: existing}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("store: import observation: %w", err)
	}

	// Observations reference sdk_sessions by foreign key; an archive may
	// carry observations for a session that was never imported.
	if err := s.ensureSessionRow(o.AgentSessionID, o.Project); err != nil {
		return nil, fmt.Errorf("store: import observation: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO observations (
			sdk_session_id, project, text, type, title, subtitle,
			facts, narrative, concepts, files_read, files_modified,
			prompt_number, discovery_tokens, created_at, created_at_epoch
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.AgentSessionID, o.Project, o.Text, o.Type, o.Title, o.Subtitle,
		encodeList(o.Facts), o.Narrative, encodeList(o.Concepts),
		encodeList(o.FilesRead), encodeList(o.FilesModified),
		o.PromptNumber, o.DiscoveryTokens, o.CreatedAt, o.CreatedAtEpoch)
	if err != nil {
		return nil, fmt.Errorf("store: import observation: %w", err)
	}
	id, _ := res.LastInsertId()
	return &ImportResult{Imported: true, ID: id}, nil
}

// ImportSummary inserts a summary with its original timestamps. Duplicate
// detection keys on the agent session id.
func (s *Store) ImportSummary(sm Summary) (*ImportResult, error) {
	var existing int64
	err := s.db.QueryRow(
		"SELECT id FROM session_summaries WHERE sdk_session_id = ?", sm.AgentSessionID,
	).Scan(&existing)
	if err == nil {
		return &ImportResult{Imported: false, ID: existing}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("store: import summary: %w", err)
	}

	if err := s.ensureSessionRow(sm.AgentSessionID, sm.Project); err != nil {
		return nil, fmt.Errorf("store: import summary: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO session_summaries (
			sdk_session_id, project, request, investigated, learned,
			completed, next_steps, notes, prompt_number, discovery_tokens,
			created_at, created_at_epoch
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sm.AgentSessionID, sm.Project, sm.Request, sm.Investigated, sm.Learned,
		sm.Completed, sm.NextSteps, sm.Notes, sm.PromptNumber, sm.DiscoveryTokens,
		sm.CreatedAt, sm.CreatedAtEpoch)
	if err != nil {
		return nil, fmt.Errorf("store: import summary: %w", err)
	}
	id, _ := res.LastInsertId()
	return &ImportResult{Imported: true, ID: id}, nil
}

// ImportUserPrompt inserts a prompt with its original timestamps.
// Duplicate detection keys on (session, prompt number).
func (s *Store) ImportUserPrompt(p UserPrompt) (*ImportResult, error) {
	var existing int64
	err := s.db.QueryRow(`
		SELECT id FROM user_prompts
		WHERE claude_session_id = ? AND prompt_number = ?
	`, p.ExternalID, p.PromptNumber).Scan(&existing)
	if err == nil {
		return &ImportResult{Imported: false, ID: existing}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("store: import user prompt: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO user_prompts (
			claude_session_id, prompt_number, prompt_text, created_at, created_at_epoch
		) VALUES (?, ?, ?, ?, ?)
	`, p.ExternalID, p.PromptNumber, p.PromptText, p.CreatedAt, p.CreatedAtEpoch)
	if err != nil {
		return nil, fmt.Errorf("store: import user prompt: %w", err)
	}
	id, _ := res.LastInsertId()
	return &ImportResult{Imported: true, ID: id}, nil
}
