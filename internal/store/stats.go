package store

// Stats summarizes the contents of the database.
type Stats struct {
	Sessions       int64    `json:"sessions"`
	ActiveSessions int64    `json:"active_sessions"`
	Observations   int64    `json:"observations"`
	Summaries      int64    `json:"summaries"`
	Prompts        int64    `json:"prompts"`
	PendingQueue   int64    `json:"pending_queue"`
	Projects       []string `json:"projects"`
}

// Stats counts the stored records and lists the known projects.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{}

	counts := []struct {
		query string
		dst   *int64
	}{
		{"SELECT COUNT(*) FROM sdk_sessions", &st.Sessions},
		{"SELECT COUNT(*) FROM sdk_sessions WHERE status = 'active'", &st.ActiveSessions},
		{"SELECT COUNT(*) FROM observations", &st.Observations},
		{"SELECT COUNT(*) FROM session_summaries", &st.Summaries},
		{"SELECT COUNT(*) FROM user_prompts", &st.Prompts},
		{"SELECT COUNT(*) FROM pending_messages WHERE status = 'pending'", &st.PendingQueue},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	rows, err := s.db.Query(`SELECT DISTINCT project FROM sdk_sessions WHERE project != '' ORDER BY project`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		st.Projects = append(st.Projects, p)
	}
	return st, rows.Err()
}
