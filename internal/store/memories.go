package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Memory types.
const (
	MemInteraction = "interaction"
	MemEpisode     = "episode"
	MemTheme       = "theme"
	MemArchetype   = "archetype"
	MemFact        = "fact"
	MemPreference  = "preference"
)

// defaultDecayRates maps memory type to its per-hour decay constant, used
// when a memory is created without an explicit override.
var defaultDecayRates = map[string]float64{
	MemInteraction: 0.8,
	MemEpisode:     0.4,
	MemTheme:       0.2,
	MemArchetype:   0.05,
	MemFact:        0.1,
	MemPreference:  0.05,
}

// DefaultDecayRate returns the per-type decay rate, or 0 for unknown types.
func DefaultDecayRate(memType string) float64 {
	return defaultDecayRates[memType]
}

// Memory is a decayable unit of retained knowledge. CurrentStrength is
// derived from InitialStrength, DecayRate and elapsed time; the stored value
// is a cache, not a source of truth.
type Memory struct {
	ID              string
	SessionID       string // optional; some memories are cross-session
	Type            string
	Content         string
	InitialStrength float64
	CurrentStrength float64
	DecayRate       float64
	Level           int // 0=raw .. 3=archetype
	ParentID        string
	SourceMessages  []string
	CreatedAt       int64
	LastReviewed    *int64
}

// ReviewedOrCreated returns the reference time for decay: last_reviewed when
// set, created_at otherwise.
func (m *Memory) ReviewedOrCreated() int64 {
	if m.LastReviewed != nil {
		return *m.LastReviewed
	}
	return m.CreatedAt
}

// CreateMemory inserts a memory. Strength defaults apply: zero decay rate is
// replaced by the per-type default, and current strength starts at the
// initial strength.
func (db *DB) CreateMemory(m *Memory) error {
	if _, ok := defaultDecayRates[m.Type]; !ok {
		return NewValidationError("type", "unknown memory type")
	}
	if m.Content == "" {
		return NewValidationError("content", "must not be empty")
	}
	if m.InitialStrength < 0 || m.InitialStrength > 1 {
		return NewValidationError("initial_strength", "must be in [0.0, 1.0]")
	}
	if m.ParentID != "" {
		if err := db.checkParentChain(m.ParentID, m.ID); err != nil {
			return err
		}
	}

	if m.ID == "" {
		m.ID = ulid.Make().String()
	}
	if m.DecayRate == 0 {
		m.DecayRate = defaultDecayRates[m.Type]
	}
	m.CurrentStrength = m.InitialStrength
	m.CreatedAt = time.Now().UnixMilli()

	srcs, err := json.Marshal(m.SourceMessages)
	if err != nil {
		return storageErr("encode source messages", err)
	}

	_, err = db.Exec(`
		INSERT INTO memories (id, session_id, mem_type, content, initial_strength,
			current_strength, decay_rate, level, parent_id, source_messages, created_at, last_reviewed)
		VALUES (?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?, NULL)
	`, m.ID, m.SessionID, m.Type, m.Content, m.InitialStrength,
		m.CurrentStrength, m.DecayRate, m.Level, m.ParentID, string(srcs), m.CreatedAt)
	if err != nil {
		return storageErr("insert memory", err)
	}
	return nil
}

// checkParentChain walks the ancestor chain from parentID and rejects a
// parent assignment that would make selfID its own ancestor.
func (db *DB) checkParentChain(parentID, selfID string) error {
	seen := make(map[string]bool)
	cur := parentID
	for cur != "" {
		if cur == selfID || seen[cur] {
			return NewValidationError("parent", "cycle in memory hierarchy")
		}
		seen[cur] = true

		var next sql.NullString
		err := db.QueryRow(`SELECT parent_id FROM memories WHERE id = ?`, cur).Scan(&next)
		if err == sql.ErrNoRows {
			return NewNotFoundError("memory", cur)
		}
		if err != nil {
			return storageErr("walk parent chain", err)
		}
		cur = next.String
	}
	return nil
}

// SetMemoryParent reassigns a memory's parent. Fails if the assignment would
// introduce a cycle.
func (db *DB) SetMemoryParent(id, parentID string) error {
	if parentID != "" {
		if err := db.checkParentChain(parentID, id); err != nil {
			return err
		}
	}
	result, err := db.Exec(`UPDATE memories SET parent_id = NULLIF(?, '') WHERE id = ?`, parentID, id)
	if err != nil {
		return storageErr("update memory parent", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewNotFoundError("memory", id)
	}
	return nil
}

const memoryCols = `id, COALESCE(session_id, ''), mem_type, content, initial_strength,
	current_strength, decay_rate, level, COALESCE(parent_id, ''), source_messages, created_at, last_reviewed`

func scanMemory(row interface{ Scan(...any) error }) (*Memory, error) {
	var m Memory
	var srcs string
	var reviewed sql.NullInt64
	err := row.Scan(&m.ID, &m.SessionID, &m.Type, &m.Content, &m.InitialStrength,
		&m.CurrentStrength, &m.DecayRate, &m.Level, &m.ParentID, &srcs, &m.CreatedAt, &reviewed)
	if err != nil {
		return nil, err
	}
	if reviewed.Valid {
		m.LastReviewed = &reviewed.Int64
	}
	if err := json.Unmarshal([]byte(srcs), &m.SourceMessages); err != nil {
		m.SourceMessages = nil
	}
	return &m, nil
}

// GetMemory returns a memory by id, or nil if it does not exist.
func (db *DB) GetMemory(id string) (*Memory, error) {
	row := db.QueryRow(`SELECT `+memoryCols+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get memory", err)
	}
	return m, nil
}

// AllMemories returns every memory, oldest first.
func (db *DB) AllMemories() ([]Memory, error) {
	rows, err := db.Query(`SELECT ` + memoryCols + ` FROM memories ORDER BY created_at ASC`)
	if err != nil {
		return nil, storageErr("query memories", err)
	}
	defer rows.Close()

	var mems []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, storageErr("scan memory", err)
		}
		mems = append(mems, *m)
	}
	return mems, rows.Err()
}

// SaveCurrentStrength persists a recomputed current_strength for a memory.
func (db *DB) SaveCurrentStrength(id string, strength float64) error {
	result, err := db.Exec(`UPDATE memories SET current_strength = ? WHERE id = ?`, strength, id)
	if err != nil {
		return storageErr("update memory strength", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewNotFoundError("memory", id)
	}
	return nil
}

// TouchMemory records a review: last_reviewed is set to now and the cached
// strength snaps back to the initial strength.
func (db *DB) TouchMemory(id string) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		UPDATE memories SET last_reviewed = ?, current_strength = initial_strength
		WHERE id = ?
	`, now, id)
	if err != nil {
		return storageErr("touch memory", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return NewNotFoundError("memory", id)
	}
	return nil
}
