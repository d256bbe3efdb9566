package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateSession inserts an open session row and returns its id.
func (db *DB) CreateSession(ctx context.Context, userID int, contextID string) (string, error) {
	id := uuid.New()
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, context_id) VALUES ($1, $2, $3)`,
		id, userID, contextID)
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}
	return id.String(), nil
}

// FindOpenSession returns the user's most recent unfinished session, or nil.
func (db *DB) FindOpenSession(ctx context.Context, userID int) (*models.SessionRecord, error) {
	var (
		r  models.SessionRecord
		id uuid.UUID
	)
	err := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, context_id, started_at, finished_at
		 FROM sessions
		 WHERE user_id = $1 AND finished_at IS NULL
		 ORDER BY started_at DESC
		 LIMIT 1`, userID).
		Scan(&id, &r.UserID, &r.ContextID, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying open session: %w", err)
	}
	r.ID = id.String()
	return &r, nil
}

// GetSession returns one session by id.
func (db *DB) GetSession(ctx context.Context, sessionID string) (models.SessionRecord, error) {
	uid, err := uuid.Parse(sessionID)
	if err != nil {
		return models.SessionRecord{}, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	r := models.SessionRecord{ID: sessionID}
	err = db.Pool.QueryRow(ctx,
		`SELECT user_id, context_id, started_at, finished_at FROM sessions WHERE id = $1`, uid).
		Scan(&r.UserID, &r.ContextID, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return models.SessionRecord{}, notFound(err, "session")
	}
	return r, nil
}

// FinishSession stamps finished_at. Finishing twice keeps the first stamp.
func (db *DB) FinishSession(ctx context.Context, sessionID string) error {
	uid, err := uuid.Parse(sessionID)
	if err != nil {
		return fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	tag, err := db.Pool.Exec(ctx,
		`UPDATE sessions SET finished_at = COALESCE(finished_at, NOW()) WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// DeleteSession removes a session and, by cascade, all of its logged sets.
// Deleting a missing session is not an error.
func (db *DB) DeleteSession(ctx context.Context, sessionID string) error {
	uid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil
	}
	if _, err := db.Pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, uid); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
