package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Session statuses.
const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusArchived = "archived"
)

// Session represents one conversation thread scoped to a project path.
type Session struct {
	ID          string
	ProjectPath string
	Title       string
	Status      string
	CreatedAt   int64
}

const sessionCols = "id, project_path, title, status, created_at"

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.ProjectPath, &s.Title, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession creates a new active session for the given project path.
func (db *DB) CreateSession(projectPath string) (*Session, error) {
	if projectPath == "" {
		return nil, NewValidationError("project_path", "must not be empty")
	}

	s := &Session{
		ID:          uuid.NewString(),
		ProjectPath: projectPath,
		Status:      StatusActive,
		CreatedAt:   time.Now().UnixMilli(),
	}
	_, err := db.Exec(`
		INSERT INTO sessions (id, project_path, title, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.ProjectPath, s.Title, s.Status, s.CreatedAt)
	if err != nil {
		return nil, storageErr("insert session", err)
	}
	return s, nil
}

// OpenForPath returns the active session for a project path, creating one the
// first time the path is opened.
func (db *DB) OpenForPath(projectPath string) (*Session, error) {
	if projectPath == "" {
		return nil, NewValidationError("project_path", "must not be empty")
	}

	row := db.QueryRow(`
		SELECT `+sessionCols+` FROM sessions
		WHERE project_path = ? AND status = 'active'
		ORDER BY created_at DESC LIMIT 1
	`, projectPath)
	s, err := scanSession(row)
	if err == nil {
		return s, nil
	}
	if err != sql.ErrNoRows {
		return nil, storageErr("find session for path", err)
	}
	return db.CreateSession(projectPath)
}

// GetSession returns a session by id, or nil if it does not exist.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get session", err)
	}
	return s, nil
}

// ActiveSessions returns all sessions with status active, newest first.
func (db *DB) ActiveSessions() ([]Session, error) {
	rows, err := db.Query(`
		SELECT ` + sessionCols + ` FROM sessions
		WHERE status = 'active' ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, storageErr("query active sessions", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, storageErr("scan session", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// SetSessionStatus transitions a session to the given status. Sessions are
// never deleted; archiving is the terminal transition.
func (db *DB) SetSessionStatus(id, status string) error {
	switch status {
	case StatusActive, StatusPaused, StatusArchived:
	default:
		return NewValidationError("status", "must be active, paused, or archived")
	}

	result, err := db.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return storageErr("update session status", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewNotFoundError("session", id)
	}
	return nil
}

// SetSessionTitle updates a session's title.
func (db *DB) SetSessionTitle(id, title string) error {
	result, err := db.Exec(`UPDATE sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return storageErr("update session title", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewNotFoundError("session", id)
	}
	return nil
}
