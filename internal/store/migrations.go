package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "sessions: conversation threads",
		SQL: `
CREATE TABLE sessions (
    id             TEXT PRIMARY KEY,
    project_path   TEXT NOT NULL,
    title          TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paused', 'archived')),
    created_at     INTEGER NOT NULL
);

CREATE INDEX idx_sessions_status  ON sessions(status);
CREATE INDEX idx_sessions_project ON sessions(project_path);
`,
	},
	{
		Version:     2,
		Description: "messages: ordered turns within a session",
		SQL: `
CREATE TABLE messages (
    id             TEXT PRIMARY KEY,
    session_id     TEXT NOT NULL,
    role           TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system', 'tool')),
    content        TEXT NOT NULL,
    sequence       INTEGER NOT NULL CHECK (sequence >= 0),
    created_at     INTEGER NOT NULL,
    model          TEXT NOT NULL DEFAULT '',
    tool_call      TEXT NOT NULL DEFAULT '',
    tool_result    TEXT NOT NULL DEFAULT '',

    FOREIGN KEY (session_id) REFERENCES sessions(id),
    UNIQUE (session_id, sequence)
);

CREATE INDEX idx_messages_session ON messages(session_id, sequence);
`,
	},
	{
		Version:     3,
		Description: "memories: decayable knowledge units",
		SQL: `
CREATE TABLE memories (
    id               TEXT PRIMARY KEY,
    session_id       TEXT,
    mem_type         TEXT NOT NULL CHECK (mem_type IN ('interaction', 'episode', 'theme', 'archetype', 'fact', 'preference')),
    content          TEXT NOT NULL,
    initial_strength REAL NOT NULL,
    current_strength REAL NOT NULL,
    decay_rate       REAL NOT NULL,
    level            INTEGER NOT NULL DEFAULT 0,
    parent_id        TEXT,
    source_messages  TEXT NOT NULL DEFAULT '[]',
    created_at       INTEGER NOT NULL,
    last_reviewed    INTEGER,

    FOREIGN KEY (session_id) REFERENCES sessions(id),
    FOREIGN KEY (parent_id)  REFERENCES memories(id)
);

CREATE INDEX idx_memories_strength ON memories(current_strength);
CREATE INDEX idx_memories_type     ON memories(mem_type);
CREATE INDEX idx_memories_parent   ON memories(parent_id);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
