// Package config loads the mem-claude settings file.
//
// Settings are a flat map of CLAUDE_MEM_* keys to string values, stored as
// JSON at <data-dir>/settings.json. Older installations used a nested
// {"env": {...}} shape; Load migrates those files to the flat schema in
// place the first time it reads them.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Setting keys. Values are always strings; typed accessors on Settings
// parse them.
const (
	KeyWorkerPort        = "CLAUDE_MEM_WORKER_PORT"
	KeyWorkerHost        = "CLAUDE_MEM_WORKER_HOST"
	KeyDataDir           = "CLAUDE_MEM_DATA_DIR"
	KeyLogLevel          = "CLAUDE_MEM_LOG_LEVEL"
	KeySkipTools         = "CLAUDE_MEM_SKIP_TOOLS"
	KeyObservations      = "CLAUDE_MEM_CONTEXT_OBSERVATIONS"
	KeyFullCount         = "CLAUDE_MEM_CONTEXT_FULL_COUNT"
	KeyFullField         = "CLAUDE_MEM_CONTEXT_FULL_FIELD"
	KeySessionCount      = "CLAUDE_MEM_CONTEXT_SESSION_COUNT"
	KeyObservationTypes  = "CLAUDE_MEM_CONTEXT_OBSERVATION_TYPES"
	KeyObservationTopics = "CLAUDE_MEM_CONTEXT_OBSERVATION_CONCEPTS"
	KeyShowReadTokens    = "CLAUDE_MEM_CONTEXT_SHOW_READ_TOKENS"
	KeyShowWorkTokens    = "CLAUDE_MEM_CONTEXT_SHOW_WORK_TOKENS"
	KeyShowSavings       = "CLAUDE_MEM_CONTEXT_SHOW_SAVINGS_AMOUNT"
	KeyShowSavingsPct    = "CLAUDE_MEM_CONTEXT_SHOW_SAVINGS_PERCENT"
	KeyShowLastSummary   = "CLAUDE_MEM_CONTEXT_SHOW_LAST_SUMMARY"
	KeyShowLastMessage   = "CLAUDE_MEM_CONTEXT_SHOW_LAST_MESSAGE"
)

// Defaults returns the full default settings map.
func Defaults() map[string]string {
	home, _ := os.UserHomeDir()
	return map[string]string{
		KeyWorkerPort:        "37777",
		KeyWorkerHost:        "127.0.0.1",
		KeyDataDir:           filepath.Join(home, ".mem-claude"),
		KeyLogLevel:          "INFO",
		KeySkipTools:         "ListMcpResourcesTool,SlashCommand,Skill,TodoWrite,AskUserQuestion",
		KeyObservations:      "50",
		KeyFullCount:         "5",
		KeyFullField:         "narrative",
		KeySessionCount:      "10",
		KeyObservationTypes:  "bugfix,feature,refactor,change,discovery,decision",
		KeyObservationTopics: "how-it-works,why-it-exists,what-changed,problem-solution,gotcha,pattern,trade-off",
		KeyShowReadTokens:    "true",
		KeyShowWorkTokens:    "true",
		KeyShowSavings:       "true",
		KeyShowSavingsPct:    "true",
		KeyShowLastSummary:   "true",
		KeyShowLastMessage:   "false",
	}
}

// Settings is the merged view of defaults, file values and environment
// overrides.
type Settings struct {
	values map[string]string
}

// Load reads the settings file at path, merging it over the defaults.
// A missing file yields pure defaults and is written out so users have
// something to edit. Environment variables take highest precedence.
// Unreadable or malformed files degrade to defaults rather than failing.
func Load(path string) *Settings {
	values := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		fileValues, migrated := parseFile(data)
		for k := range values {
			if v, ok := fileValues[k]; ok {
				values[k] = v
			}
		}
		if migrated {
			// Rewrite the nested legacy shape as flat. Best effort.
			_ = writeFile(path, fileValues)
		}
	case os.IsNotExist(err):
		_ = writeFile(path, values)
	}

	for k := range values {
		if v := os.Getenv(k); v != "" {
			values[k] = v
		}
	}

	return &Settings{values: values}
}

// LoadDefault resolves the data directory (environment override first,
// then the default under the home directory) and loads the settings file
// inside it.
func LoadDefault() *Settings {
	dataDir := os.Getenv(KeyDataDir)
	if dataDir == "" {
		dataDir = Defaults()[KeyDataDir]
	}
	return Load(SettingsPath(dataDir))
}

// parseFile decodes a settings file body. It accepts both the flat schema
// and the legacy nested {"env": {...}} schema, reporting migrated=true for
// the latter.
func parseFile(data []byte) (map[string]string, bool) {
	var nested struct {
		Env map[string]string `json:"env"`
	}
	if err := json.Unmarshal(data, &nested); err == nil && len(nested.Env) > 0 {
		return nested.Env, true
	}

	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, false
	}
	delete(flat, "env")
	return flat, false
}

func writeFile(path string, values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create settings directory: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal settings: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("config: write settings: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: rename settings: %w", err)
	}
	return nil
}

// Get returns the raw string value for a key, empty when unknown.
func (s *Settings) Get(key string) string {
	return s.values[key]
}

// GetInt parses the value for key as an integer, returning fallback when
// missing or malformed.
func (s *Settings) GetInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.values[key]))
	if err != nil {
		return fallback
	}
	return n
}

// GetBool reports whether the value for key is the string "true".
func (s *Settings) GetBool(key string) bool {
	return s.values[key] == "true"
}

// GetList splits a comma-separated value into trimmed non-empty elements.
func (s *Settings) GetList(key string) []string {
	var out []string
	for _, part := range strings.Split(s.values[key], ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DataDir returns the resolved data directory.
func (s *Settings) DataDir() string {
	return s.values[KeyDataDir]
}

// WorkerAddr returns the host:port the worker listens on.
func (s *Settings) WorkerAddr() string {
	return s.values[KeyWorkerHost] + ":" + s.values[KeyWorkerPort]
}

// SettingsPath returns the canonical settings file location for a data dir.
func SettingsPath(dataDir string) string {
	return filepath.Join(dataDir, "settings.json")
}

// DatabasePath returns the canonical database location for a data dir.
func DatabasePath(dataDir string) string {
	return filepath.Join(dataDir, "mem-claude.db")
}
