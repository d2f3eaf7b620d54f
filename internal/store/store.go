// Package store implements the persistent memory layer for mem-claude.
//
// It uses SQLite with FTS5 full-text search to persist coding sessions,
// observations, session summaries and user prompts. Schema evolution runs
// through a versioned migration registry so databases created by any prior
// release upgrade in place on open.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chengjon/mem-claude/internal/logging"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Types ───────────────────────────────────────────────────────────────────

// Session statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Session tracks one assistant session. It carries two identifiers: the
// external id assigned by the host (claude_session_id, always present) and
// the agent id assigned once a memory agent attaches (sdk_session_id).
type Session struct {
	ID               int64   `json:"id"`
	ExternalID       string  `json:"claude_session_id"`
	AgentSessionID   *string `json:"sdk_session_id,omitempty"`
	Project          string  `json:"project"`
	UserPrompt       *string `json:"user_prompt,omitempty"`
	StartedAt        string  `json:"started_at"`
	StartedAtEpoch   int64   `json:"started_at_epoch"`
	CompletedAt      *string `json:"completed_at,omitempty"`
	CompletedAtEpoch *int64  `json:"completed_at_epoch,omitempty"`
	Status           string  `json:"status"`
	WorkerPort       *int64  `json:"worker_port,omitempty"`
	PromptCounter    int64   `json:"prompt_counter"`
}

// Observation is a single structured memory record extracted from session
// activity. Facts and files are ordered lists; Concepts is a tag set.
type Observation struct {
	ID              int64    `json:"id"`
	AgentSessionID  string   `json:"sdk_session_id"`
	Project         string   `json:"project"`
	Text            *string  `json:"text,omitempty"`
	Type            string   `json:"type"`
	Title           *string  `json:"title,omitempty"`
	Subtitle        *string  `json:"subtitle,omitempty"`
	Facts           []string `json:"facts"`
	Narrative       *string  `json:"narrative,omitempty"`
	Concepts        []string `json:"concepts"`
	FilesRead       []string `json:"files_read"`
	FilesModified   []string `json:"files_modified"`
	PromptNumber    *int64   `json:"prompt_number,omitempty"`
	DiscoveryTokens int64    `json:"discovery_tokens"`
	CreatedAt       string   `json:"created_at"`
	CreatedAtEpoch  int64    `json:"created_at_epoch"`
}

// ObservationInput holds the caller-supplied fields of a new observation.
type ObservationInput struct {
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	Facts         []string `json:"facts"`
	Narrative     string   `json:"narrative"`
	Concepts      []string `json:"concepts"`
	FilesRead     []string `json:"files_read"`
	FilesModified []string `json:"files_modified"`
}

// Summary is a structured wrap-up of one session. Sessions may accumulate
// several summaries over their lifetime.
type Summary struct {
	ID              int64   `json:"id"`
	AgentSessionID  string  `json:"sdk_session_id"`
	Project         string  `json:"project"`
	Request         *string `json:"request,omitempty"`
	Investigated    *string `json:"investigated,omitempty"`
	Learned         *string `json:"learned,omitempty"`
	Completed       *string `json:"completed,omitempty"`
	NextSteps       *string `json:"next_steps,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	PromptNumber    *int64  `json:"prompt_number,omitempty"`
	DiscoveryTokens int64   `json:"discovery_tokens"`
	CreatedAt       string  `json:"created_at"`
	CreatedAtEpoch  int64   `json:"created_at_epoch"`
}

// SummaryInput holds the caller-supplied fields of a new summary.
type SummaryInput struct {
	Request      string `json:"request"`
	Investigated string `json:"investigated"`
	Learned      string `json:"learned"`
	Completed    string `json:"completed"`
	NextSteps    string `json:"next_steps"`
	Notes        string `json:"notes"`
}

// UserPrompt is one prompt the user typed, numbered within its session.
type UserPrompt struct {
	ID             int64  `json:"id"`
	ExternalID     string `json:"claude_session_id"`
	PromptNumber   int64  `json:"prompt_number"`
	PromptText     string `json:"prompt_text"`
	CreatedAt      string `json:"created_at"`
	CreatedAtEpoch int64  `json:"created_at_epoch"`
}

// Pending message lifecycle states.
const (
	PendingStatusPending    = "pending"
	PendingStatusProcessing = "processing"
	PendingStatusProcessed  = "processed"
	PendingStatusFailed     = "failed"
)

// Pending message kinds.
const (
	PendingObservation = "observation"
	PendingSummarize   = "summarize"
)

// PendingMessage is a queued unit of work awaiting processing, drained at
// session completion when the agent never got to it.
type PendingMessage struct {
	ID             int64   `json:"id"`
	SessionID      int64   `json:"session_id"`
	MessageType    string  `json:"message_type"`
	ToolName       *string `json:"tool_name,omitempty"`
	ToolInput      *string `json:"tool_input,omitempty"`
	ToolResponse   *string `json:"tool_response,omitempty"`
	Cwd            *string `json:"cwd,omitempty"`
	PromptNumber   *int64  `json:"prompt_number,omitempty"`
	Status         string  `json:"status"`
	RetryCount     int64   `json:"retry_count"`
	CreatedAt      string  `json:"created_at"`
	CreatedAtEpoch int64   `json:"created_at_epoch"`
}

// SearchResult embeds an Observation with its FTS5 rank score.
type SearchResult struct {
	Observation
	Rank float64 `json:"rank"`
}

// SearchPage is one page of ranked search results.
type SearchPage struct {
	Items   []SearchResult `json:"items"`
	Total   int            `json:"total"`
	HasMore bool           `json:"has_more"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds store configuration.
type Config struct {
	DataDir          string
	MaxSearchResults int
	Logger           *logging.Logger
}

// DefaultConfig returns the default configuration for the memory store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".mem-claude"),
		MaxSearchResults: 100,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistent memory engine backed by SQLite + FTS5.
type Store struct {
	db  *sql.DB
	cfg Config
	log *logging.Logger
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// runs pending migrations and a non-fatal schema health check.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.New("store")
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = DefaultConfig().MaxSearchResults
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	// busy_timeout and foreign_keys are per-connection state, so they go
	// in the DSN where the driver applies them to every connection the
	// pool opens, not once via Exec on whichever connection happens to
	// serve it.
	dbPath := filepath.Join(cfg.DataDir, "mem-claude.db")
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)"
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: cfg.Logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	s.healthCheck()

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// now returns the current wall-clock time as the (ISO-8601, epoch-millis)
// pair every table stores.
func now() (string, int64) {
	t := time.Now().UTC()
	return t.Format(time.RFC3339), t.UnixMilli()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// encodeList serializes a string list for a JSON-encoded column. Nil and
// empty lists both store as "[]" so json_each never sees malformed input.
func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeList parses a JSON-encoded list column. Malformed or empty values
// decode to an empty list rather than an error; a corrupt row should not
// make a whole listing unreadable.
func decodeList(raw *string) []string {
	if raw == nil || *raw == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(*raw), &items); err != nil {
		return []string{}
	}
	return items
}

// decodeSet parses a JSON-encoded tag column, dropping duplicates while
// preserving first-seen order.
func decodeSet(raw *string) []string {
	items := decodeList(raw)
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
