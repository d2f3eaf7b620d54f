// Package worker hosts the HTTP boundary of the memory service and the
// session completion coordinator behind it. Handlers stay thin: decode,
// delegate to the store or coordinator, encode.
//
// Editor hook processes calling these routes translate the outcome to
// exit codes: 0 to continue silently, 2 to surface the response body to
// the user. Every handler therefore answers quickly and never blocks on
// background work.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chengjon/mem-claude/internal/logging"
	"github.com/chengjon/mem-claude/internal/store"
	"github.com/chengjon/mem-claude/internal/synth"
)

// Config wires a Server.
type Config struct {
	Addr        string
	Port        int
	Store       *store.Store
	Engine      *synth.Engine
	Coordinator *Coordinator
	Logger      *logging.Logger
}

// Server is the worker HTTP endpoint.
type Server struct {
	cfg        Config
	store      *store.Store
	engine     *synth.Engine
	coord      *Coordinator
	log        *logging.Logger
	mux        *http.ServeMux
	httpServer *http.Server
	processing atomic.Bool
}

// NewServer builds the worker with all routes registered.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.New("worker")
	}
	s := &Server{
		cfg:    cfg,
		store:  cfg.Store,
		engine: cfg.Engine,
		coord:  cfg.Coordinator,
		log:    cfg.Logger,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/sessions/init", s.handleInit)
	s.mux.HandleFunc("POST /api/sessions/observations", s.handleObservations)
	s.mux.HandleFunc("POST /api/sessions/summarize", s.handleSummarize)
	s.mux.HandleFunc("POST /api/sessions/complete", s.handleComplete)
	s.mux.HandleFunc("GET /api/context/inject", s.handleContextInject)
	s.mux.HandleFunc("POST /api/processing", s.handleSetProcessing)
	s.mux.HandleFunc("GET /api/processing", s.handleGetProcessing)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Handler exposes the route table, used by tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("listening", map[string]any{"addr": s.cfg.Addr})
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ─── Handlers ────────────────────────────────────────────────────────────────

type initRequest struct {
	SessionID string `json:"session_id"`
	Cwd       string `json:"cwd"`
	Project   string `json:"project"`
	Prompt    string `json:"prompt"`
}

// handleInit registers or revives a session for an external id, counts the
// prompt and records its text. Prompts wrapped in <private> tags are
// acknowledged but never stored.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if isPrivatePrompt(req.Prompt) {
		s.writeJSON(w, http.StatusOK, map[string]any{"skipped": "private"})
		return
	}

	project := req.Project
	if project == "" {
		project = synth.ProjectName(req.Cwd)
	}

	id, err := s.store.CreateSession(req.SessionID, project, req.Prompt)
	if err != nil {
		s.fail(w, "session_init_failed", err)
		return
	}

	sess, err := s.store.GetSessionByID(id)
	if err != nil {
		s.fail(w, "session_init_failed", err)
		return
	}
	if sess != nil && sess.Status != store.StatusActive {
		if err := s.store.ReactivateSession(id); err != nil {
			s.fail(w, "session_reactivate_failed", err)
			return
		}
		s.log.Info("session_reactivated", map[string]any{"session_id": id})
	}
	if s.cfg.Port > 0 {
		if err := s.store.SetWorkerPort(id, s.cfg.Port); err != nil {
			s.log.Warn("worker_port_claim_failed", map[string]any{"session_id": id}, err)
		}
	}

	promptNumber, err := s.store.IncrementPromptCounter(id)
	if err != nil {
		s.fail(w, "prompt_counter_failed", err)
		return
	}
	if req.Prompt != "" {
		if _, err := s.store.SaveUserPrompt(req.SessionID, promptNumber, req.Prompt); err != nil {
			s.fail(w, "prompt_save_failed", err)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":            id,
		"prompt_number": promptNumber,
	})
}

type observationRequest struct {
	SessionID       string                  `json:"session_id"`
	Observation     *store.ObservationInput `json:"observation"`
	PromptNumber    *int64                  `json:"prompt_number"`
	DiscoveryTokens int64                   `json:"discovery_tokens"`
	ToolName        string                  `json:"tool_name"`
	ToolInput       string                  `json:"tool_input"`
	ToolResponse    string                  `json:"tool_response"`
	Cwd             string                  `json:"cwd"`
}

// handleObservations stores a structured observation when the caller has
// one, or queues the raw tool capture for later processing when it
// doesn't.
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := s.store.FindAnyByExternalID(req.SessionID)
	if err != nil {
		s.fail(w, "observation_failed", err)
		return
	}

	if req.Observation != nil && req.Observation.Type != "" {
		agentID := req.SessionID
		project := synth.ProjectName(req.Cwd)
		if sess != nil {
			project = sess.Project
			if sess.AgentSessionID != nil {
				agentID = *sess.AgentSessionID
			}
		}
		id, _, err := s.store.StoreObservation(agentID, project, *req.Observation, req.PromptNumber, req.DiscoveryTokens)
		if err != nil {
			s.fail(w, "observation_store_failed", err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "queued": false})
		return
	}

	if sess == nil {
		internalID, err := s.store.CreateSession(req.SessionID, synth.ProjectName(req.Cwd), "")
		if err != nil {
			s.fail(w, "observation_failed", err)
			return
		}
		sess = &store.Session{ID: internalID}
	}
	id, err := s.store.EnqueuePending(sess.ID, store.PendingInput{
		MessageType:  store.PendingObservation,
		ToolName:     req.ToolName,
		ToolInput:    req.ToolInput,
		ToolResponse: req.ToolResponse,
		Cwd:          req.Cwd,
		PromptNumber: req.PromptNumber,
	})
	if err != nil {
		s.fail(w, "observation_queue_failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "queued": true})
}

type summarizeRequest struct {
	SessionID       string              `json:"session_id"`
	Summary         *store.SummaryInput `json:"summary"`
	PromptNumber    *int64              `json:"prompt_number"`
	DiscoveryTokens int64               `json:"discovery_tokens"`
	Cwd             string              `json:"cwd"`
}

// handleSummarize stores a structured summary, or queues a summarize
// request when the caller has none ready.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	sess, err := s.store.FindAnyByExternalID(req.SessionID)
	if err != nil {
		s.fail(w, "summarize_failed", err)
		return
	}

	if req.Summary != nil && *req.Summary != (store.SummaryInput{}) {
		agentID := req.SessionID
		project := synth.ProjectName(req.Cwd)
		if sess != nil {
			project = sess.Project
			if sess.AgentSessionID != nil {
				agentID = *sess.AgentSessionID
			}
		}
		id, _, err := s.store.StoreSummary(agentID, project, *req.Summary, req.PromptNumber, req.DiscoveryTokens)
		if err != nil {
			s.fail(w, "summary_store_failed", err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "queued": false})
		return
	}

	if sess == nil {
		s.writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	id, err := s.store.EnqueuePending(sess.ID, store.PendingInput{
		MessageType:  store.PendingSummarize,
		Cwd:          req.Cwd,
		PromptNumber: req.PromptNumber,
	})
	if err != nil {
		s.fail(w, "summarize_queue_failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "queued": true})
}

type completeRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	completed, err := s.coord.CompleteByExternalID(req.SessionID)
	if err != nil {
		s.fail(w, "completion_failed", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"completed": completed})
}

// handleContextInject renders the context briefing. The project query
// param doubles as a working directory; colors=true switches to ANSI
// output for terminal display.
func (s *Server) handleContextInject(w http.ResponseWriter, r *http.Request) {
	cwd := r.URL.Query().Get("cwd")
	if cwd == "" {
		cwd = r.URL.Query().Get("project")
	}
	if cwd == "" {
		s.writeError(w, http.StatusBadRequest, "project or cwd query param is required")
		return
	}

	out, err := s.engine.Generate(synth.Request{
		Cwd:       cwd,
		SessionID: r.URL.Query().Get("session_id"),
		Colors:    r.URL.Query().Get("colors") == "true",
	})
	if err != nil {
		s.fail(w, "context_generate_failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, out)
}

type processingRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleSetProcessing(w http.ResponseWriter, r *http.Request) {
	var req processingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.processing.Store(req.Active)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetProcessing(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"active": s.processing.Load()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ─── Plumbing ────────────────────────────────────────────────────────────────

// isPrivatePrompt reports whether the whole prompt is wrapped in private
// tags, the caller's signal that it must not be persisted.
func isPrivatePrompt(prompt string) bool {
	t := strings.TrimSpace(prompt)
	return strings.HasPrefix(t, "<private>") && strings.HasSuffix(t, "</private>")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("response_encode_failed", nil, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) fail(w http.ResponseWriter, event string, err error) {
	s.log.Error(event, nil, err)
	s.writeError(w, http.StatusInternalServerError, err.Error())
}
