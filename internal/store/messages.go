package store

import (
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message represents one immutable turn within a session. Messages are
// append-only: never mutated or deleted after creation.
type Message struct {
	ID         string
	SessionID  string
	Role       string
	Content    string
	Sequence   int
	CreatedAt  int64
	Model      string
	ToolCall   string
	ToolResult string
}

// MessageOpts carries the optional attributes of a message.
type MessageOpts struct {
	Model      string
	ToolCall   string
	ToolResult string
}

func validRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// StoreMessage appends a message to a session, assigning the next sequence
// number. Per session, sequences form a contiguous range starting at 0. The
// read-max-then-insert pair runs under the session's write lock and inside
// one transaction; the UNIQUE(session_id, sequence) constraint backstops it.
func (db *DB) StoreMessage(sessionID, role, content string, opts *MessageOpts) (*Message, error) {
	if sessionID == "" {
		return nil, NewValidationError("session_id", "must not be empty")
	}
	if !validRole(role) {
		return nil, NewValidationError("role", "must be user, assistant, system, or tool")
	}

	sess, err := db.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, NewNotFoundError("session", sessionID)
	}

	m := &Message{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UnixMilli(),
	}
	if opts != nil {
		m.Model = opts.Model
		m.ToolCall = opts.ToolCall
		m.ToolResult = opts.ToolResult
	}

	lock := db.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := db.Begin()
	if err != nil {
		return nil, storageErr("begin store message", err)
	}

	var maxSeq int
	err = tx.QueryRow(`
		SELECT COALESCE(MAX(sequence), -1) FROM messages WHERE session_id = ?
	`, sessionID).Scan(&maxSeq)
	if err != nil {
		tx.Rollback()
		return nil, storageErr("read max sequence", err)
	}
	m.Sequence = maxSeq + 1

	_, err = tx.Exec(`
		INSERT INTO messages (id, session_id, role, content, sequence, created_at, model, tool_call, tool_result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.SessionID, m.Role, m.Content, m.Sequence, m.CreatedAt, m.Model, m.ToolCall, m.ToolResult)
	if err != nil {
		tx.Rollback()
		return nil, storageErr("insert message", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit store message", err)
	}
	return m, nil
}

// SessionMessages returns all messages for a session, ascending by sequence.
func (db *DB) SessionMessages(sessionID string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, session_id, role, content, sequence, created_at, model, tool_call, tool_result
		FROM messages WHERE session_id = ? ORDER BY sequence ASC
	`, sessionID)
	if err != nil {
		return nil, storageErr("query session messages", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Sequence,
			&m.CreatedAt, &m.Model, &m.ToolCall, &m.ToolResult); err != nil {
			return nil, storageErr("scan message", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SessionStats summarizes the messages of one session.
type SessionStats struct {
	Total     int
	ByRole    map[string]int
	ToolCalls int
}

// Stats returns message counts for a session: total, per role, and how many
// messages carry a tool call payload.
func (db *DB) Stats(sessionID string) (*SessionStats, error) {
	rows, err := db.Query(`
		SELECT role, COUNT(*), SUM(CASE WHEN tool_call != '' THEN 1 ELSE 0 END)
		FROM messages WHERE session_id = ? GROUP BY role
	`, sessionID)
	if err != nil {
		return nil, storageErr("query session stats", err)
	}
	defer rows.Close()

	stats := &SessionStats{ByRole: make(map[string]int)}
	for rows.Next() {
		var role string
		var count int
		var toolCalls sql.NullInt64
		if err := rows.Scan(&role, &count, &toolCalls); err != nil {
			return nil, storageErr("scan stats", err)
		}
		stats.ByRole[role] = count
		stats.Total += count
		stats.ToolCalls += int(toolCalls.Int64)
	}
	return stats, rows.Err()
}
