// Package database persists session snapshots in a local SQLite file. The
// orchestrator emits a snapshot on every state change; this store is the
// persistence collaborator that receives them.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"vizchat/agent"
)

// SessionStore saves and restores serialized sessions.
type SessionStore struct {
	db *sql.DB
}

// OpenSessionStore opens (and migrates) the store at path.
func OpenSessionStore(path string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	updated_at INTEGER NOT NULL,
	snapshot   TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate session store: %w", err)
	}
	return &SessionStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot upserts the session's serialized state. Implements the
// orchestrator's SnapshotSink.
func (s *SessionStore) SaveSnapshot(snapshot agent.SessionSnapshot) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (id, updated_at, snapshot) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at, snapshot = excluded.snapshot`,
		snapshot.SessionID, time.Now().Unix(), string(encoded),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores one session by id.
func (s *SessionStore) LoadSnapshot(sessionID string) (*agent.SessionSnapshot, error) {
	var encoded string
	err := s.db.QueryRow(`SELECT snapshot FROM sessions WHERE id = ?`, sessionID).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot agent.SessionSnapshot
	if err := json.Unmarshal([]byte(encoded), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// LatestSnapshot restores the most recently saved session, or nil when the
// store is empty.
func (s *SessionStore) LatestSnapshot() (*agent.SessionSnapshot, error) {
	var encoded string
	err := s.db.QueryRow(`SELECT snapshot FROM sessions ORDER BY updated_at DESC LIMIT 1`).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	var snapshot agent.SessionSnapshot
	if err := json.Unmarshal([]byte(encoded), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// ListSessions returns session ids newest first.
func (s *SessionStore) ListSessions() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
