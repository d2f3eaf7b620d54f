package store

import (
	"database/sql"
	"fmt"
)

const promptColumns = `id, claude_session_id, prompt_number, prompt_text, created_at, created_at_epoch`

func scanPrompt(row interface{ Scan(...any) error }) (UserPrompt, error) {
	var p UserPrompt
	err := row.Scan(&p.ID, &p.ExternalID, &p.PromptNumber, &p.PromptText, &p.CreatedAt, &p.CreatedAtEpoch)
	return p, err
}

// ─── User prompts ────────────────────────────────────────────────────────────

// SaveUserPrompt records one user prompt under its session and number.
func (s *Store) SaveUserPrompt(externalID string, promptNumber int64, text string) (int64, error) {
	ts, epoch := now()
	res, err := s.db.Exec(`
		INSERT INTO user_prompts
		(claude_session_id, prompt_number, prompt_text, created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?)
	`, externalID, promptNumber, text, ts, epoch)
	if err != nil {
		return 0, fmt.Errorf("store: save user prompt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: save user prompt: %w", err)
	}
	return id, nil
}

// GetUserPrompt returns the text of one numbered prompt, or "" when absent.
func (s *Store) GetUserPrompt(externalID string, promptNumber int64) (string, error) {
	var text string
	err := s.db.QueryRow(`
		SELECT prompt_text FROM user_prompts
		WHERE claude_session_id = ? AND prompt_number = ?
		LIMIT 1
	`, externalID, promptNumber).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get user prompt: %w", err)
	}
	return text, nil
}

// PromptByID returns one prompt, or nil when absent.
func (s *Store) PromptByID(id int64) (*UserPrompt, error) {
	p, err := scanPrompt(s.db.QueryRow(
		"SELECT "+promptColumns+" FROM user_prompts WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: prompt by id: %w", err)
	}
	return &p, nil
}

// PromptsByIDs returns the prompts with the given ids, newest first.
func (s *Store) PromptsByIDs(ids []int64) ([]UserPrompt, error) {
	if len(ids) == 0 {
		return []UserPrompt{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryPrompts(
		"SELECT "+promptColumns+" FROM user_prompts WHERE id IN ("+placeholders(len(ids))+
			") ORDER BY created_at_epoch DESC, id DESC",
		args...,
	)
}

func (s *Store) queryPrompts(query string, args ...any) ([]UserPrompt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query prompts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []UserPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
