package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// baselineVersion is the schema version a freshly created database starts
// at. The registry below carries databases from there to the current shape.
const baselineVersion = 4

// migration is one registered schema step. Steps self-guard against
// partially upgraded databases by inspecting the live schema before acting,
// so re-running a recorded step is always safe.
type migration struct {
	version int
	up      func(tx *sql.Tx) error
}

// ─── Migration engine ────────────────────────────────────────────────────────

// migrate brings the database to the current schema version. A fresh
// database gets the baseline schema first; then every registered migration
// above the recorded high-water mark runs in order, each inside its own
// transaction with an INSERT OR IGNORE ledger write.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version    INTEGER NOT NULL UNIQUE,
			applied_at TEXT    NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	applied, err := s.maxAppliedVersion()
	if err != nil {
		return err
	}

	if applied == 0 {
		if err := s.applyBaseline(); err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		applied = baselineVersion
	}

	for _, m := range s.migrations() {
		if m.version <= applied {
			continue
		}
		s.log.Info("migration_start", map[string]any{"version": m.version})

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", m.version, err)
		}
		if err := m.up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if err := recordVersion(tx, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: record: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}

		s.log.Info("migration_applied", map[string]any{"version": m.version})
	}

	return nil
}

func (s *Store) maxAppliedVersion() (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema_versions: %w", err)
	}
	return int(v.Int64), nil
}

func recordVersion(tx *sql.Tx, version int) error {
	ts, _ := now()
	_, err := tx.Exec(
		"INSERT OR IGNORE INTO schema_versions (version, applied_at) VALUES (?, ?)",
		version, ts,
	)
	return err
}

// applyBaseline creates the original table shapes and records the baseline
// version. The historical quirks here are intentional: the narrow type
// CHECK, NOT NULL text and the UNIQUE summary constraint are what early
// databases actually had, and the registry migrates them away.
func (s *Store) applyBaseline() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sdk_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			claude_session_id TEXT UNIQUE NOT NULL,
			sdk_session_id TEXT UNIQUE,
			project TEXT NOT NULL,
			user_prompt TEXT,
			started_at TEXT NOT NULL,
			started_at_epoch INTEGER NOT NULL,
			completed_at TEXT,
			completed_at_epoch INTEGER,
			status TEXT CHECK(status IN ('active', 'completed', 'failed')) NOT NULL DEFAULT 'active'
		);

		CREATE INDEX IF NOT EXISTS idx_sdk_sessions_claude_id ON sdk_sessions(claude_session_id);
		CREATE INDEX IF NOT EXISTS idx_sdk_sessions_sdk_id ON sdk_sessions(sdk_session_id);
		CREATE INDEX IF NOT EXISTS idx_sdk_sessions_project ON sdk_sessions(project);
		CREATE INDEX IF NOT EXISTS idx_sdk_sessions_status ON sdk_sessions(status);
		CREATE INDEX IF NOT EXISTS idx_sdk_sessions_started ON sdk_sessions(started_at_epoch DESC);
	`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sdk_session_id TEXT NOT NULL,
			project TEXT NOT NULL,
			text TEXT NOT NULL,
			type TEXT NOT NULL CHECK(type IN ('decision', 'bugfix', 'feature', 'refactor', 'discovery')),
			created_at TEXT NOT NULL,
			created_at_epoch INTEGER NOT NULL,
			FOREIGN KEY(sdk_session_id) REFERENCES sdk_sessions(sdk_session_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_observations_sdk_session ON observations(sdk_session_id);
		CREATE INDEX IF NOT EXISTS idx_observations_project ON observations(project);
		CREATE INDEX IF NOT EXISTS idx_observations_type ON observations(type);
		CREATE INDEX IF NOT EXISTS idx_observations_created ON observations(created_at_epoch DESC);
	`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS session_summaries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sdk_session_id TEXT UNIQUE NOT NULL,
			project TEXT NOT NULL,
			request TEXT,
			investigated TEXT,
			learned TEXT,
			completed TEXT,
			next_steps TEXT,
			files_read TEXT,
			files_edited TEXT,
			notes TEXT,
			created_at TEXT NOT NULL,
			created_at_epoch INTEGER NOT NULL,
			FOREIGN KEY(sdk_session_id) REFERENCES sdk_sessions(sdk_session_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_session_summaries_sdk_session ON session_summaries(sdk_session_id);
		CREATE INDEX IF NOT EXISTS idx_session_summaries_project ON session_summaries(project);
		CREATE INDEX IF NOT EXISTS idx_session_summaries_created ON session_summaries(created_at_epoch DESC);
	`); err != nil {
		return err
	}

	if err := recordVersion(tx, baselineVersion); err != nil {
		return err
	}
	return tx.Commit()
}

// migrations returns the ordered registry. Versions must be strictly
// ascending; the engine applies everything above the recorded maximum.
func (s *Store) migrations() []migration {
	return []migration{
		{5, s.migrateAddWorkerPortColumn},
		{6, s.migrateAddPromptTrackingColumns},
		{7, s.migrateRemoveSummariesUniqueConstraint},
		{8, s.migrateAddObservationHierarchicalFields},
		{9, s.migrateMakeObservationsTextNullable},
		{10, s.migrateCreateUserPromptsTable},
		{11, s.migrateEnsureDiscoveryTokensColumns},
		{12, s.migrateCreatePendingMessagesTable},
		{13, s.migrateCreateSearchTables},
	}
}

// ─── Schema inspection guards ────────────────────────────────────────────────

func tableHasColumn(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cid         int
			name, ctype string
			notNull     int
			dflt        sql.NullString
			pk          int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func columnIsNotNull(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cid         int
			name, ctype string
			notNull     int
			dflt        sql.NullString
			pk          int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return notNull == 1, nil
		}
	}
	return false, rows.Err()
}

func tableHasUniqueIndex(tx *sql.Tx, table string) (bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA index_list(%s)", table))
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return false, err
		}
		if unique == 1 {
			return true, nil
		}
	}
	return false, rows.Err()
}

func schemaObjectExists(tx *sql.Tx, kind, name string) (bool, error) {
	var got string
	err := tx.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = ? AND name = ?", kind, name,
	).Scan(&got)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ─── Registered migrations ───────────────────────────────────────────────────

func (s *Store) migrateAddWorkerPortColumn(tx *sql.Tx) error {
	has, err := tableHasColumn(tx, "sdk_sessions", "worker_port")
	if err != nil || has {
		return err
	}
	_, err = tx.Exec("ALTER TABLE sdk_sessions ADD COLUMN worker_port INTEGER")
	return err
}

func (s *Store) migrateAddPromptTrackingColumns(tx *sql.Tx) error {
	steps := []struct {
		table, column, ddl string
	}{
		{"sdk_sessions", "prompt_counter", "ALTER TABLE sdk_sessions ADD COLUMN prompt_counter INTEGER DEFAULT 0"},
		{"observations", "prompt_number", "ALTER TABLE observations ADD COLUMN prompt_number INTEGER"},
		{"session_summaries", "prompt_number", "ALTER TABLE session_summaries ADD COLUMN prompt_number INTEGER"},
	}
	for _, st := range steps {
		has, err := tableHasColumn(tx, st.table, st.column)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := tx.Exec(st.ddl); err != nil {
			return err
		}
	}
	return nil
}

// migrateRemoveSummariesUniqueConstraint rewrites session_summaries without
// the UNIQUE constraint on sdk_session_id so sessions can accumulate
// multiple summaries. SQLite cannot drop a table-level constraint in place,
// so this copies through a shadow table and recreates the indexes.
func (s *Store) migrateRemoveSummariesUniqueConstraint(tx *sql.Tx) error {
	has, err := tableHasUniqueIndex(tx, "session_summaries")
	if err != nil || !has {
		return err
	}

	stmts := []string{
		`CREATE TABLE session_summaries_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sdk_session_id TEXT NOT NULL,
			project TEXT NOT NULL,
			request TEXT,
			investigated TEXT,
			learned TEXT,
			completed TEXT,
			next_steps TEXT,
			files_read TEXT,
			files_edited TEXT,
			notes TEXT,
			prompt_number INTEGER,
			created_at TEXT NOT NULL,
			created_at_epoch INTEGER NOT NULL,
			FOREIGN KEY(sdk_session_id) REFERENCES sdk_sessions(sdk_session_id) ON DELETE CASCADE
		)`,
		`INSERT INTO session_summaries_new
		 SELECT id, sdk_session_id, project, request, investigated, learned,
		        completed, next_steps, files_read, files_edited, notes,
		        prompt_number, created_at, created_at_epoch
		 FROM session_summaries`,
		`DROP TABLE session_summaries`,
		`ALTER TABLE session_summaries_new RENAME TO session_summaries`,
		`CREATE INDEX idx_session_summaries_sdk_session ON session_summaries(sdk_session_id)`,
		`CREATE INDEX idx_session_summaries_project ON session_summaries(project)`,
		`CREATE INDEX idx_session_summaries_created ON session_summaries(created_at_epoch DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrateAddObservationHierarchicalFields(tx *sql.Tx) error {
	has, err := tableHasColumn(tx, "observations", "title")
	if err != nil || has {
		return err
	}
	for _, column := range []string{"title", "subtitle", "facts", "narrative", "concepts", "files_read", "files_modified"} {
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE observations ADD COLUMN %s TEXT", column)); err != nil {
			return err
		}
	}
	return nil
}

// migrateMakeObservationsTextNullable rewrites observations so legacy
// flat-text rows and structured rows coexist: text becomes nullable and the
// type CHECK widens to accept 'change'. Same shadow-table protocol as the
// summaries rewrite.
func (s *Store) migrateMakeObservationsTextNullable(tx *sql.Tx) error {
	notNull, err := columnIsNotNull(tx, "observations", "text")
	if err != nil || !notNull {
		return err
	}

	stmts := []string{
		`CREATE TABLE observations_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sdk_session_id TEXT NOT NULL,
			project TEXT NOT NULL,
			text TEXT,
			type TEXT NOT NULL CHECK(type IN ('decision', 'bugfix', 'feature', 'refactor', 'discovery', 'change')),
			title TEXT,
			subtitle TEXT,
			facts TEXT,
			narrative TEXT,
			concepts TEXT,
			files_read TEXT,
			files_modified TEXT,
			prompt_number INTEGER,
			created_at TEXT NOT NULL,
			created_at_epoch INTEGER NOT NULL,
			FOREIGN KEY(sdk_session_id) REFERENCES sdk_sessions(sdk_session_id) ON DELETE CASCADE
		)`,
		`INSERT INTO observations_new
		 SELECT id, sdk_session_id, project, text, type, title, subtitle, facts,
		        narrative, concepts, files_read, files_modified, prompt_number,
		        created_at, created_at_epoch
		 FROM observations`,
		`DROP TABLE observations`,
		`ALTER TABLE observations_new RENAME TO observations`,
		`CREATE INDEX idx_observations_sdk_session ON observations(sdk_session_id)`,
		`CREATE INDEX idx_observations_project ON observations(project)`,
		`CREATE INDEX idx_observations_type ON observations(type)`,
		`CREATE INDEX idx_observations_created ON observations(created_at_epoch DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrateCreateUserPromptsTable(tx *sql.Tx) error {
	has, err := schemaObjectExists(tx, "table", "user_prompts")
	if err != nil || has {
		return err
	}

	stmts := []string{
		`CREATE TABLE user_prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			claude_session_id TEXT NOT NULL,
			prompt_number INTEGER NOT NULL,
			prompt_text TEXT NOT NULL,
			created_at TEXT NOT NULL,
			created_at_epoch INTEGER NOT NULL
		)`,
		`CREATE INDEX idx_user_prompts_session ON user_prompts(claude_session_id)`,
		`CREATE INDEX idx_user_prompts_number ON user_prompts(claude_session_id, prompt_number)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrateEnsureDiscoveryTokensColumns(tx *sql.Tx) error {
	for _, table := range []string{"observations", "session_summaries"} {
		has, err := tableHasColumn(tx, table, "discovery_tokens")
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN discovery_tokens INTEGER DEFAULT 0", table)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrateCreatePendingMessagesTable(tx *sql.Tx) error {
	has, err := schemaObjectExists(tx, "table", "pending_messages")
	if err != nil || has {
		return err
	}

	stmts := []string{
		`CREATE TABLE pending_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			message_type TEXT NOT NULL CHECK(message_type IN ('observation', 'summarize')),
			tool_name TEXT,
			tool_input TEXT,
			tool_response TEXT,
			cwd TEXT,
			prompt_number INTEGER,
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK(status IN ('pending', 'processing', 'processed', 'failed')),
			retry_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			created_at_epoch INTEGER NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sdk_sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX idx_pending_messages_session ON pending_messages(session_id)`,
		`CREATE INDEX idx_pending_messages_status ON pending_messages(session_id, status)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateCreateSearchTables adds the FTS5 virtual tables, their sync
// triggers, and a backfill of every existing row.
func (s *Store) migrateCreateSearchTables(tx *sql.Tx) error {
	has, err := schemaObjectExists(tx, "table", "observations_fts")
	if err != nil || has {
		return err
	}

	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
			title,
			subtitle,
			narrative,
			text,
			facts,
			concepts,
			content='observations',
			content_rowid='id'
		)`,
		`INSERT INTO observations_fts(rowid, title, subtitle, narrative, text, facts, concepts)
		 SELECT id, title, subtitle, narrative, text, facts, concepts FROM observations`,
		`CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
			INSERT INTO observations_fts(rowid, title, subtitle, narrative, text, facts, concepts)
			VALUES (new.id, new.title, new.subtitle, new.narrative, new.text, new.facts, new.concepts);
		END`,
		`CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
			INSERT INTO observations_fts(observations_fts, rowid, title, subtitle, narrative, text, facts, concepts)
			VALUES ('delete', old.id, old.title, old.subtitle, old.narrative, old.text, old.facts, old.concepts);
		END`,
		`CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE ON observations BEGIN
			INSERT INTO observations_fts(observations_fts, rowid, title, subtitle, narrative, text, facts, concepts)
			VALUES ('delete', old.id, old.title, old.subtitle, old.narrative, old.text, old.facts, old.concepts);
			INSERT INTO observations_fts(rowid, title, subtitle, narrative, text, facts, concepts)
			VALUES (new.id, new.title, new.subtitle, new.narrative, new.text, new.facts, new.concepts);
		END`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS session_summaries_fts USING fts5(
			request,
			investigated,
			learned,
			completed,
			next_steps,
			notes,
			content='session_summaries',
			content_rowid='id'
		)`,
		`INSERT INTO session_summaries_fts(rowid, request, investigated, learned, completed, next_steps, notes)
		 SELECT id, request, investigated, learned, completed, next_steps, notes FROM session_summaries`,
		`CREATE TRIGGER IF NOT EXISTS session_summaries_ai AFTER INSERT ON session_summaries BEGIN
			INSERT INTO session_summaries_fts(rowid, request, investigated, learned, completed, next_steps, notes)
			VALUES (new.id, new.request, new.investigated, new.learned, new.completed, new.next_steps, new.notes);
		END`,
		`CREATE TRIGGER IF NOT EXISTS session_summaries_ad AFTER DELETE ON session_summaries BEGIN
			INSERT INTO session_summaries_fts(session_summaries_fts, rowid, request, investigated, learned, completed, next_steps, notes)
			VALUES ('delete', old.id, old.request, old.investigated, old.learned, old.completed, old.next_steps, old.notes);
		END`,
		`CREATE TRIGGER IF NOT EXISTS session_summaries_au AFTER UPDATE ON session_summaries BEGIN
			INSERT INTO session_summaries_fts(session_summaries_fts, rowid, request, investigated, learned, completed, next_steps, notes)
			VALUES ('delete', old.id, old.request, old.investigated, old.learned, old.completed, old.next_steps, old.notes);
			INSERT INTO session_summaries_fts(rowid, request, investigated, learned, completed, next_steps, notes)
			VALUES (new.id, new.request, new.investigated, new.learned, new.completed, new.next_steps, new.notes);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ─── Health check ────────────────────────────────────────────────────────────

// expectedIndexes lists every index the current schema should carry.
var expectedIndexes = map[string]string{
	"idx_sdk_sessions_claude_id":        "CREATE INDEX idx_sdk_sessions_claude_id ON sdk_sessions(claude_session_id)",
	"idx_sdk_sessions_sdk_id":           "CREATE INDEX idx_sdk_sessions_sdk_id ON sdk_sessions(sdk_session_id)",
	"idx_sdk_sessions_project":          "CREATE INDEX idx_sdk_sessions_project ON sdk_sessions(project)",
	"idx_sdk_sessions_status":           "CREATE INDEX idx_sdk_sessions_status ON sdk_sessions(status)",
	"idx_sdk_sessions_started":          "CREATE INDEX idx_sdk_sessions_started ON sdk_sessions(started_at_epoch DESC)",
	"idx_observations_sdk_session":      "CREATE INDEX idx_observations_sdk_session ON observations(sdk_session_id)",
	"idx_observations_project":          "CREATE INDEX idx_observations_project ON observations(project)",
	"idx_observations_type":             "CREATE INDEX idx_observations_type ON observations(type)",
	"idx_observations_created":          "CREATE INDEX idx_observations_created ON observations(created_at_epoch DESC)",
	"idx_session_summaries_sdk_session": "CREATE INDEX idx_session_summaries_sdk_session ON session_summaries(sdk_session_id)",
	"idx_session_summaries_project":     "CREATE INDEX idx_session_summaries_project ON session_summaries(project)",
	"idx_session_summaries_created":     "CREATE INDEX idx_session_summaries_created ON session_summaries(created_at_epoch DESC)",
	"idx_user_prompts_session":          "CREATE INDEX idx_user_prompts_session ON user_prompts(claude_session_id)",
	"idx_user_prompts_number":           "CREATE INDEX idx_user_prompts_number ON user_prompts(claude_session_id, prompt_number)",
	"idx_pending_messages_session":      "CREATE INDEX idx_pending_messages_session ON pending_messages(session_id)",
	"idx_pending_messages_status":       "CREATE INDEX idx_pending_messages_status ON pending_messages(session_id, status)",
}

// healthCheck verifies indexes and FTS synchronization after migrations.
// It repairs missing indexes and logs anything else; a degraded schema is
// still a usable one, so nothing here is fatal.
func (s *Store) healthCheck() {
	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%'")
	if err != nil {
		s.log.Warn("health_check_indexes", nil, err)
		return
	}
	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			break
		}
		present[name] = true
	}
	_ = rows.Close()

	for name, ddl := range expectedIndexes {
		if present[name] {
			continue
		}
		if _, err := s.db.Exec(ddl); err != nil {
			s.log.Warn("health_check_recreate_index", map[string]any{"index": name}, err)
			continue
		}
		s.log.Info("health_check_recreated_index", map[string]any{"index": name})
	}

	s.checkFTSSync("observations", "observations_fts")
	s.checkFTSSync("session_summaries", "session_summaries_fts")
}

// checkFTSSync compares row counts between a content table and its FTS
// shadow. A mismatch means triggers were bypassed at some point; log it so
// an operator can rebuild, but never throw.
func (s *Store) checkFTSSync(table, ftsTable string) {
	var src, fts int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&src); err != nil {
		s.log.Warn("health_check_fts", map[string]any{"table": table}, err)
		return
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + ftsTable).Scan(&fts); err != nil {
		s.log.Warn("health_check_fts", map[string]any{"table": ftsTable}, err)
		return
	}
	if src != fts {
		s.log.Warn("health_check_fts_drift", map[string]any{
			"table":    table,
			"rows":     src,
			"fts_rows": fts,
		}, nil)
	}
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
