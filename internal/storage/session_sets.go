package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// LogSet inserts one logged set and returns its id. The payload is expected
// to be clamped already (models.NewSetPayload).
func (db *DB) LogSet(ctx context.Context, sessionID, exerciseID string, p models.SetPayload) (string, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return "", fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	eid, err := uuid.Parse(exerciseID)
	if err != nil {
		return "", fmt.Errorf("exercise %q: %w", exerciseID, ErrNotFound)
	}
	id := uuid.New()
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO session_sets (id, session_id, exercise_id, set_number, weight, reps, time_sec,
		 distance, rpe, custom, completed, category, rest_started_at, rest_ended_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		id, sid, eid, p.SetNumber, p.Weight, p.Reps, p.Time,
		p.Distance, p.RPE, p.Custom, p.Completed, p.Category, p.RestStartedAt, p.RestEndedAt)
	if err != nil {
		return "", fmt.Errorf("inserting session set: %w", err)
	}
	return id.String(), nil
}

// UpdateLoggedSet overwrites the values of a logged set.
func (db *DB) UpdateLoggedSet(ctx context.Context, logID string, p models.SetPayload) error {
	uid, err := uuid.Parse(logID)
	if err != nil {
		return fmt.Errorf("logged set %q: %w", logID, ErrNotFound)
	}
	tag, err := db.Pool.Exec(ctx,
		`UPDATE session_sets SET set_number = $2, weight = $3, reps = $4, time_sec = $5,
		 distance = $6, rpe = $7, custom = $8, completed = $9, category = $10,
		 rest_started_at = $11, rest_ended_at = $12, logged_at = NOW()
		 WHERE id = $1`,
		uid, p.SetNumber, p.Weight, p.Reps, p.Time,
		p.Distance, p.RPE, p.Custom, p.Completed, p.Category, p.RestStartedAt, p.RestEndedAt)
	if err != nil {
		return fmt.Errorf("updating session set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("logged set %s: %w", logID, ErrNotFound)
	}
	return nil
}

// DeleteLoggedSet removes a logged set. Deleting a missing entry is not an error.
func (db *DB) DeleteLoggedSet(ctx context.Context, logID string) error {
	uid, err := uuid.Parse(logID)
	if err != nil {
		return nil
	}
	if _, err := db.Pool.Exec(ctx, `DELETE FROM session_sets WHERE id = $1`, uid); err != nil {
		return fmt.Errorf("deleting session set: %w", err)
	}
	return nil
}

// FetchSessionLogs returns a session's logged sets grouped by exercise, in the
// order each exercise was first logged, sets ordered by set number.
func (db *DB) FetchSessionLogs(ctx context.Context, sessionID string) ([]models.ExerciseLogs, error) {
	sid, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT s.id, s.exercise_id, s.set_number, s.weight, s.reps, s.time_sec, s.distance, s.rpe,
		 s.custom, s.completed, s.category, s.rest_started_at, s.rest_ended_at, s.logged_at,
		 e.context_id, e.owner_id, e.name, e.category, e.icon, e.metrics, e.created_at,
		 MIN(s.logged_at) OVER (PARTITION BY s.exercise_id) AS first_logged
		 FROM session_sets s
		 JOIN exercises e ON e.id = s.exercise_id
		 WHERE s.session_id = $1
		 ORDER BY first_logged ASC, s.exercise_id, s.set_number ASC, s.logged_at ASC`, sid)
	if err != nil {
		return nil, fmt.Errorf("querying session sets: %w", err)
	}
	defer rows.Close()

	var (
		result []models.ExerciseLogs
		index  = map[string]int{}
	)
	for rows.Next() {
		var (
			s           models.LoggedSet
			e           models.ExerciseRecord
			id, exID    uuid.UUID
			firstLogged any
		)
		if err := rows.Scan(&id, &exID, &s.SetNumber, &s.Weight, &s.Reps, &s.Time, &s.Distance, &s.RPE,
			&s.Custom, &s.Completed, &s.Category, &s.RestStartedAt, &s.RestEndedAt, &s.LoggedAt,
			&e.ContextID, &e.OwnerID, &e.Name, &e.Category, &e.Icon, &e.Metrics, &e.CreatedAt,
			&firstLogged); err != nil {
			return nil, fmt.Errorf("scanning session set: %w", err)
		}
		s.ID = id.String()
		s.SessionID = sessionID
		s.ExerciseID = exID.String()
		e.ID = s.ExerciseID

		i, ok := index[s.ExerciseID]
		if !ok {
			i = len(result)
			index[s.ExerciseID] = i
			result = append(result, models.ExerciseLogs{Exercise: e})
		}
		result[i].Sets = append(result[i].Sets, s)
	}
	return result, rows.Err()
}
