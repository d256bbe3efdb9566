package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps drafts in a local SQLite database at dir/drafts.db.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the draft database in dir.
func OpenSQLite(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating draft dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "drafts.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening draft db: %w", err)
	}
	// One writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS drafts (
		session_id TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL,
		payload    TEXT NOT NULL,
		saved_at   TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating drafts table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Save replaces the draft for the snapshot's session.
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	if snap.SessionID == "" {
		return ErrNoSession
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = s.now()
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO drafts (session_id, user_id, payload, saved_at) VALUES (?, ?, ?, ?)`,
		snap.SessionID, snap.UserID, string(payload), snap.SavedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving draft %s: %w", snap.SessionID, err)
	}
	return nil
}

// Load returns the draft for a session, or nil when there is none.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM drafts WHERE session_id = ?`, sessionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft %s: %w", sessionID, err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decoding draft %s: %w", sessionID, err)
	}
	return &snap, nil
}

// Clear removes the draft for a session. Clearing a missing draft is not an error.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clearing draft %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the draft database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
