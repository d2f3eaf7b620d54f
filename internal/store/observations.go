package store

import (
	"fmt"
	"strings"

	"github.com/chengjon/mem-claude/internal/search"
)

const observationColumns = `id, sdk_session_id, project, text, type, title, subtitle,
       facts, narrative, concepts, files_read, files_modified,
       prompt_number, COALESCE(discovery_tokens, 0), created_at, created_at_epoch`

const observationColumnsQualified = `o.id, o.sdk_session_id, o.project, o.text, o.type, o.title, o.subtitle,
       o.facts, o.narrative, o.concepts, o.files_read, o.files_modified,
       o.prompt_number, COALESCE(o.discovery_tokens, 0), o.created_at, o.created_at_epoch`

func scanObservation(row interface{ Scan(...any) error }) (Observation, error) {
	var o Observation
	var facts, concepts, filesRead, filesModified *string
	err := row.Scan(
		&o.ID, &o.AgentSessionID, &o.Project, &o.Text, &o.Type, &o.Title, &o.Subtitle,
		&facts, &o.Narrative, &concepts, &filesRead, &filesModified,
		&o.PromptNumber, &o.DiscoveryTokens, &o.CreatedAt, &o.CreatedAtEpoch,
	)
	if err != nil {
		return Observation{}, err
	}
	o.Facts = decodeList(facts)
	o.Concepts = decodeSet(concepts)
	o.FilesRead = decodeList(filesRead)
	o.FilesModified = decodeList(filesModified)
	return o, nil
}

// ensureSessionRow guarantees an sdk_sessions row exists for an agent
// session id, creating a minimal active one when writes arrive before init.
func (s *Store) ensureSessionRow(agentSessionID, project string) error {
	var id int64
	err := s.db.QueryRow(
		"SELECT id FROM sdk_sessions WHERE sdk_session_id = ?", agentSessionID,
	).Scan(&id)
	if err == nil {
		return nil
	}

	ts, epoch := now()
	_, err = s.db.Exec(`
		INSERT INTO sdk_sessions
		(claude_session_id, sdk_session_id, project, started_at, started_at_epoch, status)
		VALUES (?, ?, ?, ?, ?, 'active')
	`, agentSessionID, agentSessionID, project, ts, epoch)
	if err != nil {
		if isUniqueViolation(err) {
			// An init-created row carries this id as its external id with
			// no agent bound yet. Bind it so child rows resolve their
			// foreign key.
			_, err = s.db.Exec(`
				UPDATE sdk_sessions SET sdk_session_id = ?
				WHERE claude_session_id = ? AND sdk_session_id IS NULL
			`, agentSessionID, agentSessionID)
			return err
		}
		return err
	}
	s.log.Info("session_auto_created", map[string]any{"sdk_session_id": agentSessionID})
	return nil
}

// ─── Observations ────────────────────────────────────────────────────────────

// StoreObservation persists a structured observation, creating the session
// row on the fly when needed. Returns the new row id and its epoch stamp.
func (s *Store) StoreObservation(agentSessionID, project string, in ObservationInput, promptNumber *int64, discoveryTokens int64) (int64, int64, error) {
	if err := s.ensureSessionRow(agentSessionID, project); err != nil {
		return 0, 0, fmt.Errorf("store: store observation: %w", err)
	}

	ts, epoch := now()
	res, err := s.db.Exec(`
		INSERT INTO observations
		(sdk_session_id, project, type, title, subtitle, facts, narrative, concepts,
		 files_read, files_modified, prompt_number, discovery_tokens, created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, agentSessionID, project, in.Type, nullableString(in.Title), nullableString(in.Subtitle),
		encodeList(in.Facts), nullableString(in.Narrative), encodeList(in.Concepts),
		encodeList(in.FilesRead), encodeList(in.FilesModified),
		promptNumber, discoveryTokens, ts, epoch)
	if err != nil {
		return 0, 0, fmt.Errorf("store: store observation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, 0, fmt.Errorf("store: store observation: %w", err)
	}
	return id, epoch, nil
}

// ListOptions filters and shapes observation listings.
type ListOptions struct {
	Project  string
	Types    []string // match any of these types
	Concepts []string // match when any concept tag intersects
	File     string   // substring match against files_read or files_modified
	OrderAsc bool
	Limit    int
	Offset   int
}

// ListObservations returns observations matching the options, newest first
// unless OrderAsc is set.
func (s *Store) ListObservations(opts ListOptions) ([]Observation, error) {
	sqlStr := "SELECT " + observationColumns + " FROM observations WHERE 1=1"
	var args []any

	if opts.Project != "" {
		sqlStr += " AND project = ?"
		args = append(args, opts.Project)
	}
	if len(opts.Types) == 1 {
		sqlStr += " AND type = ?"
		args = append(args, opts.Types[0])
	} else if len(opts.Types) > 1 {
		sqlStr += " AND type IN (" + placeholders(len(opts.Types)) + ")"
		for _, t := range opts.Types {
			args = append(args, t)
		}
	}
	if len(opts.Concepts) > 0 {
		sqlStr += ` AND EXISTS (
			SELECT 1 FROM json_each(concepts)
			WHERE value IN (` + placeholders(len(opts.Concepts)) + `)
		)`
		for _, c := range opts.Concepts {
			args = append(args, c)
		}
	}
	if opts.File != "" {
		sqlStr += " AND (files_read LIKE ? OR files_modified LIKE ?)"
		pattern := "%" + opts.File + "%"
		args = append(args, pattern, pattern)
	}

	if opts.OrderAsc {
		sqlStr += " ORDER BY created_at_epoch ASC, id ASC"
	} else {
		sqlStr += " ORDER BY created_at_epoch DESC, id DESC"
	}
	if opts.Limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			sqlStr += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	return s.queryObservations(sqlStr, args...)
}

// ObservationByID returns one observation, or nil when absent.
func (s *Store) ObservationByID(id int64) (*Observation, error) {
	obs, err := s.queryObservations(
		"SELECT "+observationColumns+" FROM observations WHERE id = ?", id,
	)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, nil
	}
	return &obs[0], nil
}

// ObservationsByIDs returns the observations with the given ids, newest
// first. Unknown ids are silently skipped.
func (s *Store) ObservationsByIDs(ids []int64) ([]Observation, error) {
	if len(ids) == 0 {
		return []Observation{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryObservations(
		"SELECT "+observationColumns+" FROM observations WHERE id IN ("+placeholders(len(ids))+
			") ORDER BY created_at_epoch DESC, id DESC",
		args...,
	)
}

// ─── Ranked search ───────────────────────────────────────────────────────────

// SearchObservations runs a keyword search over the FTS index. Results
// order by bm25 rank with recency as the tie-break, and the page fetches
// one row beyond the limit to detect whether more remain. An empty keyword
// list degrades to an unfiltered recent listing.
func (s *Store) SearchObservations(keywords []string, op, project string, offset, limit int) (*SearchPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	if len(keywords) == 0 {
		return s.recentPage(project, offset, limit)
	}

	match, err := search.BuildMatchQuery(keywords, op)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}

	sqlStr := `
		SELECT ` + observationColumnsQualified + `, fts.rank
		FROM observations_fts fts
		JOIN observations o ON o.id = fts.rowid
		WHERE observations_fts MATCH ?
	`
	args := []any{match}
	if project != "" {
		sqlStr += " AND o.project = ?"
		args = append(args, project)
	}
	sqlStr += " ORDER BY fts.rank, o.created_at_epoch DESC LIMIT ? OFFSET ?"
	args = append(args, limit+1, offset)

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []SearchResult
	for rows.Next() {
		var sr SearchResult
		var facts, concepts, filesRead, filesModified *string
		if err := rows.Scan(
			&sr.ID, &sr.AgentSessionID, &sr.Project, &sr.Text, &sr.Type, &sr.Title, &sr.Subtitle,
			&facts, &sr.Narrative, &concepts, &filesRead, &filesModified,
			&sr.PromptNumber, &sr.DiscoveryTokens, &sr.CreatedAt, &sr.CreatedAtEpoch,
			&sr.Rank,
		); err != nil {
			return nil, err
		}
		sr.Facts = decodeList(facts)
		sr.Concepts = decodeSet(concepts)
		sr.FilesRead = decodeList(filesRead)
		sr.FilesModified = decodeList(filesModified)
		items = append(items, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	countSQL := `
		SELECT COUNT(*)
		FROM observations_fts fts
		JOIN observations o ON o.id = fts.rowid
		WHERE observations_fts MATCH ?
	`
	countArgs := []any{match}
	if project != "" {
		countSQL += " AND o.project = ?"
		countArgs = append(countArgs, project)
	}
	var total int
	if err := s.db.QueryRow(countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("store: search count: %w", err)
	}

	return &SearchPage{Items: items, Total: total, HasMore: hasMore}, nil
}

// recentPage is the keyword-less fallback: a recency-ordered page with
// zero rank scores. No ranked total exists for an unfiltered listing, so
// the page reports only what it holds.
func (s *Store) recentPage(project string, offset, limit int) (*SearchPage, error) {
	obs, err := s.ListObservations(ListOptions{
		Project: project,
		Limit:   limit + 1,
		Offset:  offset,
	})
	if err != nil {
		return nil, err
	}

	hasMore := len(obs) > limit
	if hasMore {
		obs = obs[:limit]
	}

	items := make([]SearchResult, len(obs))
	for i, o := range obs {
		items[i] = SearchResult{Observation: o}
	}
	return &SearchPage{Items: items, Total: offset + len(obs), HasMore: hasMore}, nil
}

// ─── Query plumbing ──────────────────────────────────────────────────────────

func (s *Store) queryObservations(query string, args ...any) ([]Observation, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query observations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
