package store

import (
	"database/sql"
	"fmt"
)

const sessionColumns = `id, claude_session_id, sdk_session_id, project, user_prompt,
       started_at, started_at_epoch, completed_at, completed_at_epoch,
       status, worker_port, prompt_counter`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var sess Session
	var promptCounter sql.NullInt64
	err := row.Scan(
		&sess.ID, &sess.ExternalID, &sess.AgentSessionID, &sess.Project, &sess.UserPrompt,
		&sess.StartedAt, &sess.StartedAtEpoch, &sess.CompletedAt, &sess.CompletedAtEpoch,
		&sess.Status, &sess.WorkerPort, &promptCounter,
	)
	if err != nil {
		return nil, err
	}
	sess.PromptCounter = promptCounter.Int64
	return &sess, nil
}

// ─── Sessions ────────────────────────────────────────────────────────────────

// CreateSession records a new session for an external id, or revives the
// existing row when the id has been seen before. The agent session id
// starts NULL and stays that way until an agent attaches. On conflict the
// project and prompt only overwrite when the new values are non-empty, so
// a bare re-init never erases what an earlier init recorded. Returns the
// internal row id.
func (s *Store) CreateSession(externalID, project, userPrompt string) (int64, error) {
	ts, epoch := now()
	_, err := s.db.Exec(`
		INSERT INTO sdk_sessions
		(claude_session_id, sdk_session_id, project, user_prompt, started_at, started_at_epoch, status)
		VALUES (?, NULL, ?, ?, ?, ?, 'active')
		ON CONFLICT(claude_session_id) DO UPDATE SET
			project = COALESCE(NULLIF(?, ''), project),
			user_prompt = COALESCE(NULLIF(?, ''), user_prompt)
		WHERE claude_session_id = ?
	`, externalID, project, userPrompt, ts, epoch, project, userPrompt, externalID)
	if err != nil {
		return 0, fmt.Errorf("store: create session: %w", err)
	}

	var id int64
	if err := s.db.QueryRow(
		"SELECT id FROM sdk_sessions WHERE claude_session_id = ? LIMIT 1", externalID,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: create session: %w", err)
	}
	return id, nil
}

// AttachAgentSession binds the agent-assigned session id to a session row.
// The binding is set-once: a row that already carries an agent id keeps it.
func (s *Store) AttachAgentSession(id int64, agentSessionID string) error {
	_, err := s.db.Exec(`
		UPDATE sdk_sessions
		SET sdk_session_id = ?
		WHERE id = ? AND sdk_session_id IS NULL
	`, agentSessionID, id)
	if err != nil {
		return fmt.Errorf("store: attach agent session: %w", err)
	}
	return nil
}

// GetSessionByID returns the session with the given internal id, or nil
// when no such row exists.
func (s *Store) GetSessionByID(id int64) (*Session, error) {
	sess, err := scanSession(s.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sdk_sessions WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return sess, nil
}

// FindActiveByExternalID returns the active session for an external id, or
// nil when none is active.
func (s *Store) FindActiveByExternalID(externalID string) (*Session, error) {
	sess, err := scanSession(s.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sdk_sessions WHERE claude_session_id = ? AND status = 'active' LIMIT 1",
		externalID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find active session: %w", err)
	}
	return sess, nil
}

// FindAnyByExternalID returns the session for an external id regardless of
// status, or nil when the id has never been seen.
func (s *Store) FindAnyByExternalID(externalID string) (*Session, error) {
	sess, err := scanSession(s.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sdk_sessions WHERE claude_session_id = ? LIMIT 1",
		externalID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find session: %w", err)
	}
	return sess, nil
}

// ReactivateSession flips a completed or failed session back to active and
// clears its worker port, so a resumed conversation picks up a fresh
// worker binding.
func (s *Store) ReactivateSession(id int64) error {
	_, err := s.db.Exec(`
		UPDATE sdk_sessions
		SET status = 'active', worker_port = NULL, completed_at = NULL, completed_at_epoch = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("store: reactivate session: %w", err)
	}
	return nil
}

// MarkCompleted stamps a session completed.
func (s *Store) MarkCompleted(id int64) error {
	ts, epoch := now()
	_, err := s.db.Exec(`
		UPDATE sdk_sessions
		SET status = 'completed', completed_at = ?, completed_at_epoch = ?
		WHERE id = ?
	`, ts, epoch, id)
	if err != nil {
		return fmt.Errorf("store: mark completed: %w", err)
	}
	return nil
}

// MarkFailed stamps a session failed.
func (s *Store) MarkFailed(id int64) error {
	ts, epoch := now()
	_, err := s.db.Exec(`
		UPDATE sdk_sessions
		SET status = 'failed', completed_at = ?, completed_at_epoch = ?
		WHERE id = ?
	`, ts, epoch, id)
	if err != nil {
		return fmt.Errorf("store: mark failed: %w", err)
	}
	return nil
}

// SetWorkerPort records which worker owns the session.
func (s *Store) SetWorkerPort(id int64, port int) error {
	_, err := s.db.Exec("UPDATE sdk_sessions SET worker_port = ? WHERE id = ?", port, id)
	if err != nil {
		return fmt.Errorf("store: set worker port: %w", err)
	}
	return nil
}

// IncrementPromptCounter bumps the session's prompt counter and returns
// the new value.
func (s *Store) IncrementPromptCounter(id int64) (int64, error) {
	_, err := s.db.Exec(`
		UPDATE sdk_sessions
		SET prompt_counter = COALESCE(prompt_counter, 0) + 1
		WHERE id = ?
	`, id)
	if err != nil {
		return 0, fmt.Errorf("store: increment prompt counter: %w", err)
	}

	var counter int64
	if err := s.db.QueryRow(
		"SELECT COALESCE(prompt_counter, 0) FROM sdk_sessions WHERE id = ?", id,
	).Scan(&counter); err != nil {
		return 0, fmt.Errorf("store: increment prompt counter: %w", err)
	}
	return counter, nil
}
