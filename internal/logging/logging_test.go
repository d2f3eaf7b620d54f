package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return New("test").WithOutput(&buf), &buf
}

func decode(t *testing.T, buf *bytes.Buffer) Event {
	t.Helper()
	var e Event
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("log line is not valid JSON: %v\n%s", err, buf.String())
	}
	return e
}

func TestInfo_EmitsJSONLine(t *testing.T) {
	log, buf := capture(t)

	log.Info("worker_started", map[string]any{"port": 37777})

	line := buf.String()
	if !strings.HasSuffix(line, "\n") {
		t.Error("log output missing trailing newline")
	}
	e := decode(t, buf)
	if e.Level != LevelInfo {
		t.Errorf("level = %q, want %q", e.Level, LevelInfo)
	}
	if e.Component != "test" {
		t.Errorf("component = %q, want %q", e.Component, "test")
	}
	if e.Event != "worker_started" {
		t.Errorf("event = %q, want %q", e.Event, "worker_started")
	}
	if got := e.Extra["port"]; got != float64(37777) {
		t.Errorf("extra port = %v, want 37777", got)
	}
	if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", e.Timestamp, err)
	}
}

func TestError_IncludesErrorField(t *testing.T) {
	log, buf := capture(t)

	log.Error("db_open_failed", nil, errors.New("disk full"))

	e := decode(t, buf)
	if e.Level != LevelError {
		t.Errorf("level = %q, want %q", e.Level, LevelError)
	}
	if e.Error != "disk full" {
		t.Errorf("error = %q, want %q", e.Error, "disk full")
	}
}

func TestWarn_NilErrorOmitsField(t *testing.T) {
	log, buf := capture(t)

	log.Warn("slow_query", nil, nil)

	if strings.Contains(buf.String(), `"error"`) {
		t.Errorf("nil error should omit the error field: %s", buf.String())
	}
}

func TestWithSessionAndProject(t *testing.T) {
	log, buf := capture(t)

	log.WithSession("sess-1").WithProject("proj-a").Info("event", nil)

	e := decode(t, buf)
	if e.Session != "sess-1" {
		t.Errorf("session = %q, want %q", e.Session, "sess-1")
	}
	if e.Project != "proj-a" {
		t.Errorf("project = %q, want %q", e.Project, "proj-a")
	}

	// The original logger is untouched.
	buf.Reset()
	log.Info("event", nil)
	e = decode(t, buf)
	if e.Session != "" || e.Project != "" {
		t.Errorf("base logger gained context: session=%q project=%q", e.Session, e.Project)
	}
}

func TestTimedEvent_RecordsDuration(t *testing.T) {
	log, buf := capture(t)

	start := time.Now().Add(-50 * time.Millisecond)
	log.TimedEvent("context_generated", start, nil)

	e := decode(t, buf)
	if e.Duration < 50 {
		t.Errorf("duration_ms = %d, want >= 50", e.Duration)
	}
}
