package store

import "fmt"

const pendingColumns = `id, session_id, message_type, tool_name, tool_input, tool_response,
       cwd, prompt_number, status, retry_count, created_at, created_at_epoch`

// PendingInput holds the caller-supplied fields of a queued message.
type PendingInput struct {
	MessageType  string
	ToolName     string
	ToolInput    string
	ToolResponse string
	Cwd          string
	PromptNumber *int64
}

// ─── Pending messages ────────────────────────────────────────────────────────

// EnqueuePending appends a message to a session's pending queue.
func (s *Store) EnqueuePending(sessionID int64, in PendingInput) (int64, error) {
	ts, epoch := now()
	res, err := s.db.Exec(`
		INSERT INTO pending_messages
		(session_id, message_type, tool_name, tool_input, tool_response,
		 cwd, prompt_number, status, created_at, created_at_epoch)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
	`, sessionID, in.MessageType, nullableString(in.ToolName), nullableString(in.ToolInput),
		nullableString(in.ToolResponse), nullableString(in.Cwd), in.PromptNumber, ts, epoch)
	if err != nil {
		return 0, fmt.Errorf("store: enqueue pending: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: enqueue pending: %w", err)
	}
	return id, nil
}

// PendingForSession returns a session's unprocessed messages in enqueue
// order.
func (s *Store) PendingForSession(sessionID int64) ([]PendingMessage, error) {
	rows, err := s.db.Query(
		"SELECT "+pendingColumns+` FROM pending_messages
		 WHERE session_id = ? AND status = 'pending'
		 ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: pending for session: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PendingMessage
	for rows.Next() {
		var m PendingMessage
		if err := rows.Scan(
			&m.ID, &m.SessionID, &m.MessageType, &m.ToolName, &m.ToolInput, &m.ToolResponse,
			&m.Cwd, &m.PromptNumber, &m.Status, &m.RetryCount, &m.CreatedAt, &m.CreatedAtEpoch,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkPendingProcessed stamps one queued message processed.
func (s *Store) MarkPendingProcessed(id int64) error {
	_, err := s.db.Exec(
		"UPDATE pending_messages SET status = 'processed' WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: mark pending processed: %w", err)
	}
	return nil
}

// MarkPendingFailed stamps one queued message failed and bumps its retry
// count, so a later drain can tell first failures from repeat offenders.
func (s *Store) MarkPendingFailed(id int64) error {
	_, err := s.db.Exec(
		"UPDATE pending_messages SET status = 'failed', retry_count = retry_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: mark pending failed: %w", err)
	}
	return nil
}
