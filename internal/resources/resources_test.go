package resources

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chengjon/mem-claude/internal/logging"
	"github.com/chengjon/mem-claude/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(store.Config{
		DataDir: t.TempDir(),
		Logger:  logging.New("test").WithOutput(io.Discard),
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func readReq(uri string) mcp.ReadResourceRequest {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	return req
}

func TestStatusResource_Definition(t *testing.T) {
	h := NewHandler(newTestStore(t))
	res := h.StatusResource()

	if res.URI != "mem://status" {
		t.Errorf("resource URI = %q, want %q", res.URI, "mem://status")
	}
	if res.MIMEType != "application/json" {
		t.Errorf("MIME type = %q, want %q", res.MIMEType, "application/json")
	}
}

func TestHandleStatus(t *testing.T) {
	st := newTestStore(t)
	if _, _, err := st.StoreObservation("agent-1", "projR", store.ObservationInput{
		Type:  "discovery",
		Title: "found it",
	}, nil, 0); err != nil {
		t.Fatalf("failed to seed observation: %v", err)
	}

	h := NewHandler(st)
	contents, err := h.HandleStatus(context.Background(), readReq("mem://status"))
	if err != nil {
		t.Fatalf("HandleStatus returned error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents length = %d, want 1", len(contents))
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] is %T, want TextResourceContents", contents[0])
	}
	if tc.URI != "mem://status" {
		t.Errorf("URI = %q, want %q", tc.URI, "mem://status")
	}

	var stats store.Stats
	if err := json.Unmarshal([]byte(tc.Text), &stats); err != nil {
		t.Fatalf("status body is not valid JSON: %v", err)
	}
	if stats.Observations != 1 {
		t.Errorf("observations = %d, want 1", stats.Observations)
	}
	if stats.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", stats.Sessions)
	}
	if len(stats.Projects) != 1 || stats.Projects[0] != "projR" {
		t.Errorf("projects = %v, want [projR]", stats.Projects)
	}
}
