package store

import (
	"database/sql"
	"fmt"
)

// Timeline is everything recorded within a time window resolved around an
// anchor point: observations, summaries and user prompts in chronological
// order.
type Timeline struct {
	RangeStart   int64         `json:"range_start_epoch"`
	RangeEnd     int64         `json:"range_end_epoch"`
	Observations []Observation `json:"observations"`
	Summaries    []Summary     `json:"summaries"`
	Prompts      []UserPrompt  `json:"prompts"`
}

// ─── Timeline ────────────────────────────────────────────────────────────────

// TimelineAroundObservation builds a timeline centered on an observation.
// The window spans the radius-th observation on each side of the anchor;
// everything recorded inside that span is returned. A missing anchor is an
// error; an anchor with no neighbors yields a window of just itself.
func (s *Store) TimelineAroundObservation(id int64, radius int, project string) (*Timeline, error) {
	anchor, err := s.ObservationByID(id)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, fmt.Errorf("store: timeline: observation #%d not found", id)
	}
	return s.timelineAround(anchor.CreatedAtEpoch, id, radius, project)
}

// TimelineAroundTimestamp builds a timeline centered on an epoch-millis
// point in time.
func (s *Store) TimelineAroundTimestamp(epoch int64, radius int, project string) (*Timeline, error) {
	return s.timelineAround(epoch, 0, radius, project)
}

// timelineAround resolves the window boundaries by walking radius
// observations backward and forward from the anchor, then re-queries every
// collection inside the resolved range. Boundary resolution and range
// queries are separate steps on purpose: summaries and prompts have their
// own clocks and would otherwise shift the window.
func (s *Store) timelineAround(anchorEpoch, anchorID int64, radius int, project string) (*Timeline, error) {
	if radius <= 0 {
		radius = 5
	}

	older, err := s.boundaryEpoch(anchorEpoch, anchorID, radius, project, true)
	if err != nil {
		return nil, err
	}
	newer, err := s.boundaryEpoch(anchorEpoch, anchorID, radius, project, false)
	if err != nil {
		return nil, err
	}

	tl := &Timeline{RangeStart: older, RangeEnd: newer}

	obs, err := s.queryObservations(
		appendProjectFilter(
			"SELECT "+observationColumns+` FROM observations
			 WHERE created_at_epoch BETWEEN ? AND ?`, project)+
			" ORDER BY created_at_epoch ASC, id ASC",
		rangeArgs(older, newer, project)...,
	)
	if err != nil {
		return nil, err
	}
	tl.Observations = obs
	if tl.Observations == nil {
		tl.Observations = []Observation{}
	}

	sums, err := s.querySummaries(
		appendProjectFilter(
			"SELECT "+summaryColumns+` FROM session_summaries
			 WHERE created_at_epoch BETWEEN ? AND ?`, project)+
			" ORDER BY created_at_epoch ASC, id ASC",
		rangeArgs(older, newer, project)...,
	)
	if err != nil {
		return nil, err
	}
	tl.Summaries = sums
	if tl.Summaries == nil {
		tl.Summaries = []Summary{}
	}

	promptSQL := "SELECT " + promptColumns + ` FROM user_prompts
		 WHERE created_at_epoch BETWEEN ? AND ?`
	promptArgs := []any{older, newer}
	if project != "" {
		promptSQL += ` AND claude_session_id IN (
			SELECT claude_session_id FROM sdk_sessions WHERE project = ?
		)`
		promptArgs = append(promptArgs, project)
	}
	prompts, err := s.queryPrompts(promptSQL+" ORDER BY created_at_epoch ASC, id ASC", promptArgs...)
	if err != nil {
		return nil, err
	}
	tl.Prompts = prompts
	if tl.Prompts == nil {
		tl.Prompts = []UserPrompt{}
	}

	return tl, nil
}

// boundaryEpoch walks radius observations away from the anchor and returns
// the epoch of the furthest one reached. With no neighbors on that side
// the anchor's own epoch is the boundary.
func (s *Store) boundaryEpoch(anchorEpoch, anchorID int64, radius int, project string, backward bool) (int64, error) {
	cmp, dir := ">", "ASC"
	if backward {
		cmp, dir = "<", "DESC"
	}

	sqlStr := fmt.Sprintf(`
		SELECT created_at_epoch FROM observations
		WHERE (created_at_epoch %s ? OR (created_at_epoch = ? AND id %s ?))
	`, cmp, cmp)
	args := []any{anchorEpoch, anchorEpoch, anchorID}
	if project != "" {
		sqlStr += " AND project = ?"
		args = append(args, project)
	}
	sqlStr += fmt.Sprintf(" ORDER BY created_at_epoch %s, id %s LIMIT 1 OFFSET ?", dir, dir)
	args = append(args, radius-1)

	var epoch int64
	err := s.db.QueryRow(sqlStr, args...).Scan(&epoch)
	if err == sql.ErrNoRows {
		// Fewer than radius neighbors; take the furthest one that exists.
		// Walking outward sorts away from the anchor, so the extreme
		// record on this side is the LAST in that order: flip the sort
		// and take the first row.
		flipped := "DESC"
		if dir == "DESC" {
			flipped = "ASC"
		}
		sqlFurthest := fmt.Sprintf(`
			SELECT created_at_epoch FROM observations
			WHERE (created_at_epoch %s ? OR (created_at_epoch = ? AND id %s ?))
		`, cmp, cmp)
		argsFurthest := []any{anchorEpoch, anchorEpoch, anchorID}
		if project != "" {
			sqlFurthest += " AND project = ?"
			argsFurthest = append(argsFurthest, project)
		}
		sqlFurthest += fmt.Sprintf(" ORDER BY created_at_epoch %s, id %s LIMIT 1", flipped, flipped)

		err = s.db.QueryRow(sqlFurthest, argsFurthest...).Scan(&epoch)
		if err == sql.ErrNoRows {
			return anchorEpoch, nil
		}
	}
	if err != nil {
		return 0, fmt.Errorf("store: timeline boundary: %w", err)
	}
	return epoch, nil
}

func appendProjectFilter(sqlStr, project string) string {
	if project != "" {
		return sqlStr + " AND project = ?"
	}
	return sqlStr
}

func rangeArgs(start, end int64, project string) []any {
	args := []any{start, end}
	if project != "" {
		args = append(args, project)
	}
	return args
}
