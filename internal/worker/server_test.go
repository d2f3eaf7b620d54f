package worker

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chengjon/mem-claude/internal/store"
	"github.com/chengjon/mem-claude/internal/synth"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	log := quietLogger()
	srv := NewServer(Config{
		Addr:        "127.0.0.1:0",
		Port:        37777,
		Store:       st,
		Engine:      synth.NewEngine(st, synth.DefaultOptions(), log),
		Coordinator: NewCoordinator(st, nil, nil, log),
		Logger:      log,
	})
	return srv, st
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandleInit(t *testing.T) {
	srv, st := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/sessions/init", map[string]any{
		"session_id": "http-1",
		"cwd":        "/home/dev/projH",
		"prompt":     "add a feature",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["prompt_number"])

	sess, err := st.FindActiveByExternalID("http-1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "projH", sess.Project)
	require.NotNil(t, sess.WorkerPort)
	assert.Equal(t, int64(37777), *sess.WorkerPort)

	text, err := st.GetUserPrompt("http-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "add a feature", text)

	// Second init on the same id bumps the prompt counter.
	rec = postJSON(t, srv.Handler(), "/api/sessions/init", map[string]any{
		"session_id": "http-1",
		"prompt":     "now fix the tests",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["prompt_number"])
}

func TestHandleInit_PrivatePromptSkipped(t *testing.T) {
	srv, st := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/sessions/init", map[string]any{
		"session_id": "http-priv",
		"prompt":     "<private>do not record this</private>",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "private", decodeBody(t, rec)["skipped"])

	sess, err := st.FindAnyByExternalID("http-priv")
	require.NoError(t, err)
	assert.Nil(t, sess, "private prompts must leave no trace")
}

func TestHandleInit_ReactivatesCompletedSession(t *testing.T) {
	srv, st := newTestServer(t)

	id, err := st.CreateSession("http-re", "proj", "")
	require.NoError(t, err)
	require.NoError(t, st.MarkCompleted(id))

	rec := postJSON(t, srv.Handler(), "/api/sessions/init", map[string]any{
		"session_id": "http-re",
		"prompt":     "back again",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := st.GetSessionByID(id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, sess.Status)
}

func TestHandleInit_MissingSessionID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/sessions/init", map[string]any{"prompt": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleObservations_StructuredStoresDirectly(t *testing.T) {
	srv, st := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/sessions/init", map[string]any{
		"session_id": "http-obs", "cwd": "/home/dev/projO",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, srv.Handler(), "/api/sessions/observations", map[string]any{
		"session_id": "http-obs",
		"observation": map[string]any{
			"type":  "discovery",
			"title": "found the bug",
		},
		"discovery_tokens": 42,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["queued"])

	obs, err := st.ListObservations(store.ListOptions{Project: "projO"})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, int64(42), obs[0].DiscoveryTokens)
}

func TestHandleObservations_RawPayloadQueues(t *testing.T) {
	srv, st := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/sessions/init", map[string]any{
		"session_id": "http-q", "cwd": "/home/dev/projQ",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, srv.Handler(), "/api/sessions/observations", map[string]any{
		"session_id":    "http-q",
		"tool_name":     "Bash",
		"tool_response": `{"stdout":"ran tests"}`,
		"cwd":           "/home/dev/projQ",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["queued"])

	sess, err := st.FindAnyByExternalID("http-q")
	require.NoError(t, err)
	pending, err := st.PendingForSession(sess.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, store.PendingObservation, pending[0].MessageType)
}

func TestHandleSummarize_Structured(t *testing.T) {
	srv, st := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/sessions/init", map[string]any{
		"session_id": "http-sum", "cwd": "/home/dev/projS",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, srv.Handler(), "/api/sessions/summarize", map[string]any{
		"session_id": "http-sum",
		"summary": map[string]any{
			"request":   "wire the cache",
			"completed": "cache wired",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["queued"])

	summaries, err := st.RecentSummaries("projS", 5)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "wire the cache", *summaries[0].Request)
}

func TestHandleComplete(t *testing.T) {
	srv, st := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/api/sessions/init", map[string]any{
		"session_id": "http-done", "cwd": "/home/dev/projD",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, srv.Handler(), "/api/sessions/complete", map[string]any{
		"session_id": "http-done",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["completed"])

	sess, err := st.FindAnyByExternalID("http-done")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, sess.Status)

	// Completing again finds nothing active.
	rec = postJSON(t, srv.Handler(), "/api/sessions/complete", map[string]any{
		"session_id": "http-done",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["completed"])
}

func TestHandleContextInject(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/context/inject?cwd=/home/dev/emptyproj", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "No previous sessions found for this project yet.")
}

func TestHandleContextInject_MissingParams(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/context/inject", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProcessing(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/processing", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["active"])

	rec = postJSON(t, srv.Handler(), "/api/processing", map[string]any{"active": true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/processing", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, true, decodeBody(t, rec)["active"])
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
