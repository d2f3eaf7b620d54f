package store

import "fmt"

const summaryColumns = `id, sdk_session_id, project, request, investigated, learned,
       completed, next_steps, notes, prompt_number,
       COALESCE(discovery_tokens, 0), created_at, created_at_epoch`

func scanSummary(row interface{ Scan(...any) error }) (Summary, error) {
	var sm Summary
	err := row.Scan(
		&sm.ID, &sm.AgentSessionID, &sm.Project, &sm.Request, &sm.Investigated, &sm.Learned,
		&sm.Completed, &sm.NextSteps, &sm.Notes, &sm.PromptNumber,
		&sm.DiscoveryTokens, &sm.CreatedAt, &sm.CreatedAtEpoch,
	)
	return sm, err
}

// ─── Summaries ───────────────────────────────────────────────────────────────

// StoreSummary persists a session summary, creating the session row on the
// fly when needed. Sessions accumulate summaries; nothing is overwritten.
func (s *Store) StoreSummary(agentSessionID, project string, in SummaryInput, promptNumber *int64, discoveryTokens int64) (int64, int64, error) {
	if err := s.ensureSessionRow(agentSessionID, project); err != nil {
		return 0, 0, fmt.Errorf("store: store summary: %w", err)
	}

	ts, epoch := now()
	res, err := s.db.Exec(`
		INSERT INTO session_summaries
		(sdk_session_id, project, request, investigated, learned, completed,
		 next_steps, notes, prompt_number, discovery_tokens, created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, agentSessionID, project, nullableString(in.Request), nullableString(in.Investigated),
		nullableString(in.Learned), nullableString(in.Completed), nullableString(in.NextSteps),
		nullableString(in.Notes), promptNumber, discoveryTokens, ts, epoch)
	if err != nil {
		return 0, 0, fmt.Errorf("store: store summary: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, 0, fmt.Errorf("store: store summary: %w", err)
	}
	return id, epoch, nil
}

// RecentSummaries returns the newest summaries for a project, newest first.
func (s *Store) RecentSummaries(project string, limit int) ([]Summary, error) {
	sqlStr := "SELECT " + summaryColumns + " FROM session_summaries"
	var args []any
	if project != "" {
		sqlStr += " WHERE project = ?"
		args = append(args, project)
	}
	sqlStr += " ORDER BY created_at_epoch DESC, id DESC"
	if limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, limit)
	}
	return s.querySummaries(sqlStr, args...)
}

// SummariesByIDs returns the summaries with the given ids, newest first.
// Unknown ids are silently skipped.
func (s *Store) SummariesByIDs(ids []int64) ([]Summary, error) {
	if len(ids) == 0 {
		return []Summary{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.querySummaries(
		"SELECT "+summaryColumns+" FROM session_summaries WHERE id IN ("+placeholders(len(ids))+
			") ORDER BY created_at_epoch DESC, id DESC",
		args...,
	)
}

func (s *Store) querySummaries(query string, args ...any) ([]Summary, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Summary
	for rows.Next() {
		sm, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}
