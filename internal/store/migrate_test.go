package store

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/chengjon/mem-claude/internal/logging"
)

// seedBaselineDB creates a database frozen at the version-4 schema with
// one session, two legacy flat-text observations and one summary, the way
// an early installation would have left it.
func seedBaselineDB(t *testing.T, dir string) {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(dir, "mem-claude.db"))
	if err != nil {
		t.Fatalf("opening seed database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`
		CREATE TABLE schema_versions (
			version    INTEGER NOT NULL UNIQUE,
			applied_at TEXT    NOT NULL
		)
	`); err != nil {
		t.Fatalf("creating schema_versions: %v", err)
	}

	s := &Store{db: db, log: logging.New("test").WithOutput(io.Discard)}
	if err := s.applyBaseline(); err != nil {
		t.Fatalf("applying baseline schema: %v", err)
	}

	stmts := []string{
		`INSERT INTO sdk_sessions (claude_session_id, sdk_session_id, project, user_prompt, started_at, started_at_epoch, status)
		 VALUES ('legacy-ext', 'legacy-agent', 'legacyproj', 'original prompt', '2024-01-01T00:00:00Z', 1704067200000, 'completed')`,
		`INSERT INTO observations (sdk_session_id, project, text, type, created_at, created_at_epoch)
		 VALUES ('legacy-agent', 'legacyproj', 'investigated the flaky scheduler', 'discovery', '2024-01-01T01:00:00Z', 1704070800000)`,
		`INSERT INTO observations (sdk_session_id, project, text, type, created_at, created_at_epoch)
		 VALUES ('legacy-agent', 'legacyproj', 'patched the retry loop', 'bugfix', '2024-01-01T02:00:00Z', 1704074400000)`,
		`INSERT INTO session_summaries (sdk_session_id, project, request, learned, created_at, created_at_epoch)
		 VALUES ('legacy-agent', 'legacyproj', 'fix the scheduler', 'retries were unbounded', '2024-01-01T03:00:00Z', 1704078000000)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seeding legacy row: %v", err)
		}
	}
}

func TestMigrate_UpgradesBaselineDatabase(t *testing.T) {
	dir := t.TempDir()
	seedBaselineDB(t, dir)

	st, err := New(Config{
		DataDir: dir,
		Logger:  logging.New("test").WithOutput(io.Discard),
	})
	if err != nil {
		t.Fatalf("reopening seeded database: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	var version int
	if err := st.db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&version); err != nil {
		t.Fatalf("reading schema version: %v", err)
	}
	if version != 13 {
		t.Errorf("schema version = %d, want 13", version)
	}

	// Legacy rows survive the shadow-table rewrites with values intact.
	obs, err := st.ListObservations(ListOptions{Project: "legacyproj", OrderAsc: true})
	if err != nil {
		t.Fatalf("listing observations: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("observation count = %d, want 2", len(obs))
	}
	if obs[0].Text == nil || *obs[0].Text != "investigated the flaky scheduler" {
		t.Errorf("observation text = %v, want legacy text preserved", obs[0].Text)
	}
	if obs[0].CreatedAtEpoch != 1704070800000 {
		t.Errorf("observation epoch = %d, want 1704070800000", obs[0].CreatedAtEpoch)
	}
	if obs[1].Type != "bugfix" {
		t.Errorf("observation type = %q, want %q", obs[1].Type, "bugfix")
	}

	summaries, err := st.RecentSummaries("legacyproj", 10)
	if err != nil {
		t.Fatalf("listing summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summary count = %d, want 1", len(summaries))
	}
	if summaries[0].Learned == nil || *summaries[0].Learned != "retries were unbounded" {
		t.Errorf("summary learned = %v, want legacy value preserved", summaries[0].Learned)
	}
}

func TestMigrate_WidensObservationTypeCheck(t *testing.T) {
	dir := t.TempDir()
	seedBaselineDB(t, dir)

	st, err := New(Config{
		DataDir: dir,
		Logger:  logging.New("test").WithOutput(io.Discard),
	})
	if err != nil {
		t.Fatalf("reopening seeded database: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	// The baseline CHECK rejected 'change' and NULL text; both must work now.
	if _, _, err := st.StoreObservation("legacy-agent", "legacyproj", ObservationInput{
		Type:  "change",
		Title: "post-upgrade structured observation",
	}, nil, 0); err != nil {
		t.Errorf("storing change-type observation after upgrade: %v", err)
	}
}

func TestMigrate_DropsSummaryUniqueConstraint(t *testing.T) {
	dir := t.TempDir()
	seedBaselineDB(t, dir)

	st, err := New(Config{
		DataDir: dir,
		Logger:  logging.New("test").WithOutput(io.Discard),
	})
	if err != nil {
		t.Fatalf("reopening seeded database: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	// A second summary for the session the baseline already has one for.
	if _, _, err := st.StoreSummary("legacy-agent", "legacyproj", SummaryInput{
		Request: "follow-up work",
	}, nil, 0); err != nil {
		t.Fatalf("storing second summary for session: %v", err)
	}

	summaries, err := st.RecentSummaries("legacyproj", 10)
	if err != nil {
		t.Fatalf("listing summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Errorf("summary count = %d, want 2", len(summaries))
	}
}

func TestMigrate_RollbackLeavesOriginalTableIntact(t *testing.T) {
	dir := t.TempDir()
	seedBaselineDB(t, dir)

	db, err := sql.Open("sqlite", filepath.Join(dir, "mem-claude.db"))
	if err != nil {
		t.Fatalf("opening seeded database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := &Store{db: db, log: logging.New("test").WithOutput(io.Discard)}

	// Run migrations 5..7 (through the summaries shadow-table rewrite) in
	// one transaction, then abandon it as a failed migration would.
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range s.migrations()[:3] {
		if err := m.up(tx); err != nil {
			t.Fatalf("migration %d: %v", m.version, err)
		}
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rolling back: %v", err)
	}

	// Schema and data are back to the baseline shape.
	check, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = check.Rollback() }()

	hasPort, err := tableHasColumn(check, "sdk_sessions", "worker_port")
	if err != nil {
		t.Fatal(err)
	}
	if hasPort {
		t.Error("worker_port column survived the rollback")
	}
	hasUnique, err := tableHasUniqueIndex(check, "session_summaries")
	if err != nil {
		t.Fatal(err)
	}
	if !hasUnique {
		t.Error("summaries UNIQUE constraint lost despite rollback")
	}

	var count int
	var learned string
	if err := check.QueryRow("SELECT COUNT(*), MAX(learned) FROM session_summaries").Scan(&count, &learned); err != nil {
		t.Fatal(err)
	}
	if count != 1 || learned != "retries were unbounded" {
		t.Errorf("summaries after rollback = (%d, %q), want (1, legacy row)", count, learned)
	}
}

func TestMigrate_BackfillsSearchIndex(t *testing.T) {
	dir := t.TempDir()
	seedBaselineDB(t, dir)

	st, err := New(Config{
		DataDir:          dir,
		MaxSearchResults: 20,
		Logger:           logging.New("test").WithOutput(io.Discard),
	})
	if err != nil {
		t.Fatalf("reopening seeded database: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	// The FTS backfill indexes the legacy flat-text column.
	page, err := st.SearchObservations([]string{"scheduler"}, "AND", "", 0, 10)
	if err != nil {
		t.Fatalf("searching upgraded database: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("search result count = %d, want 1", len(page.Items))
	}
	if page.Items[0].Text == nil || *page.Items[0].Text != "investigated the flaky scheduler" {
		t.Errorf("search hit text = %v, want legacy observation", page.Items[0].Text)
	}

	var src, fts int
	if err := st.db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&src); err != nil {
		t.Fatal(err)
	}
	if err := st.db.QueryRow("SELECT COUNT(*) FROM observations_fts").Scan(&fts); err != nil {
		t.Fatal(err)
	}
	if src != fts {
		t.Errorf("fts rows = %d, source rows = %d, want equal", fts, src)
	}
}
