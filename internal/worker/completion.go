package worker

import (
	"encoding/json"
	"fmt"

	"github.com/chengjon/mem-claude/internal/logging"
	"github.com/chengjon/mem-claude/internal/store"
)

// AgentDetacher aborts any in-flight memory agent attached to a session.
type AgentDetacher interface {
	Detach(sessionID int64)
}

// noopDetacher is used when no agent runtime is wired in.
type noopDetacher struct{}

func (noopDetacher) Detach(int64) {}

// Coordinator owns session completion. Every completion path runs the
// same sequence: drain the pending queue, detach the agent, stamp the row,
// broadcast.
type Coordinator struct {
	store  *store.Store
	agents AgentDetacher
	events *Broadcaster
	log    *logging.Logger
}

// NewCoordinator creates a completion coordinator. A nil detacher or
// broadcaster is replaced with an inert one.
func NewCoordinator(st *store.Store, agents AgentDetacher, events *Broadcaster, log *logging.Logger) *Coordinator {
	if agents == nil {
		agents = noopDetacher{}
	}
	if events == nil {
		events = NewBroadcaster()
	}
	if log == nil {
		log = logging.New("completion")
	}
	return &Coordinator{store: st, agents: agents, events: events, log: log}
}

// CompleteByInternalID completes a session addressed by its internal row
// id: drain, detach, mark, broadcast.
func (c *Coordinator) CompleteByInternalID(sessionID int64) error {
	c.drainPending(sessionID)
	c.agents.Detach(sessionID)
	if err := c.store.MarkCompleted(sessionID); err != nil {
		return fmt.Errorf("worker: complete session: %w", err)
	}
	c.events.SessionCompleted(sessionID)
	return nil
}

// CompleteByExternalID completes the active session for an external id.
// When no session is active but the id is known, the orphaned queue is
// still drained so no observation is lost, and false reports that no
// active session was completed.
func (c *Coordinator) CompleteByExternalID(externalID string) (bool, error) {
	active, err := c.store.FindActiveByExternalID(externalID)
	if err != nil {
		return false, fmt.Errorf("worker: complete session: %w", err)
	}
	if active == nil {
		known, err := c.store.FindAnyByExternalID(externalID)
		if err != nil {
			return false, fmt.Errorf("worker: complete session: %w", err)
		}
		if known != nil {
			c.log.Info("orphaned_queue_drain", map[string]any{
				"claude_session_id": externalID,
				"session_id":        known.ID,
			})
			c.drainPending(known.ID)
		}
		return false, nil
	}

	if err := c.CompleteByInternalID(active.ID); err != nil {
		return false, err
	}
	return true, nil
}

// drainPending materializes whatever is still queued for a session.
// Observation messages become minimal change-type observations built from
// the raw tool output; summarize messages are acknowledged without a
// summary, since there is no agent left to write one. Per-message failures
// are logged and skipped so one bad row cannot wedge completion.
func (c *Coordinator) drainPending(sessionID int64) {
	pending, err := c.store.PendingForSession(sessionID)
	if err != nil {
		c.log.Error("pending_load_failed", map[string]any{"session_id": sessionID}, err)
		return
	}
	if len(pending) == 0 {
		return
	}

	c.log.Info("pending_drain", map[string]any{
		"session_id": sessionID,
		"count":      len(pending),
	})

	for _, msg := range pending {
		switch {
		case msg.MessageType == store.PendingObservation && msg.ToolName != nil && msg.ToolResponse != nil:
			if err := c.materializeObservation(sessionID, msg); err != nil {
				c.log.Error("pending_observation_failed", map[string]any{
					"session_id": sessionID,
					"message_id": msg.ID,
				}, err)
				if err := c.store.MarkPendingFailed(msg.ID); err != nil {
					c.log.Error("pending_mark_failed", map[string]any{"message_id": msg.ID}, err)
				}
				continue
			}
			if err := c.store.MarkPendingProcessed(msg.ID); err != nil {
				c.log.Error("pending_mark_failed", map[string]any{"message_id": msg.ID}, err)
			}
		case msg.MessageType == store.PendingObservation:
			// Queued without tool data; nothing to materialize from.
			c.log.Warn("pending_observation_incomplete", map[string]any{
				"session_id": sessionID,
				"message_id": msg.ID,
			}, nil)
			if err := c.store.MarkPendingFailed(msg.ID); err != nil {
				c.log.Error("pending_mark_failed", map[string]any{"message_id": msg.ID}, err)
			}
		case msg.MessageType == store.PendingSummarize:
			if err := c.store.MarkPendingProcessed(msg.ID); err != nil {
				c.log.Error("pending_mark_failed", map[string]any{"message_id": msg.ID}, err)
			}
			c.log.Info("pending_summarize_skipped", map[string]any{
				"session_id": sessionID,
				"message_id": msg.ID,
			})
		}
	}
}

func (c *Coordinator) materializeObservation(sessionID int64, msg store.PendingMessage) error {
	sess, err := c.store.GetSessionByID(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %d not found", sessionID)
	}

	output := toolOutput(*msg.ToolResponse)
	agentID := sess.ExternalID
	if sess.AgentSessionID != nil {
		agentID = *sess.AgentSessionID
	}

	_, _, err = c.store.StoreObservation(agentID, sess.Project, store.ObservationInput{
		Type:          "change",
		Title:         "Tool: " + *msg.ToolName,
		Subtitle:      truncate(output, 100),
		Facts:         []string{},
		Narrative:     output,
		Concepts:      []string{},
		FilesRead:     []string{},
		FilesModified: []string{},
	}, msg.PromptNumber, 0)
	return err
}

// toolOutput extracts the useful text from a raw tool response: stdout
// when present, stderr as second choice, otherwise the raw payload.
func toolOutput(raw string) string {
	var resp map[string]any
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return raw
	}
	if s, ok := resp["stdout"].(string); ok && s != "" {
		return s
	}
	if s, ok := resp["stderr"].(string); ok && s != "" {
		return s
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return raw
	}
	return string(data)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
