package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// FetchInventory returns every exercise visible in a gym context.
func (db *DB) FetchInventory(ctx context.Context, contextID string) ([]models.ExerciseRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, context_id, owner_id, name, category, icon, metrics, created_at
		 FROM exercises
		 WHERE context_id = $1
		 ORDER BY created_at ASC`,
		contextID)
	if err != nil {
		return nil, fmt.Errorf("querying inventory: %w", err)
	}
	defer rows.Close()

	var result []models.ExerciseRecord
	for rows.Next() {
		var (
			r  models.ExerciseRecord
			id uuid.UUID
		)
		if err := rows.Scan(&id, &r.ContextID, &r.OwnerID, &r.Name, &r.Category, &r.Icon, &r.Metrics, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		r.ID = id.String()
		result = append(result, r)
	}
	return result, rows.Err()
}

// GetExercise returns one exercise by id.
func (db *DB) GetExercise(ctx context.Context, id string) (models.ExerciseRecord, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return models.ExerciseRecord{}, fmt.Errorf("exercise %q: %w", id, ErrNotFound)
	}
	r := models.ExerciseRecord{ID: id}
	err = db.Pool.QueryRow(ctx,
		`SELECT context_id, owner_id, name, category, icon, metrics, created_at
		 FROM exercises WHERE id = $1`, uid).
		Scan(&r.ContextID, &r.OwnerID, &r.Name, &r.Category, &r.Icon, &r.Metrics, &r.CreatedAt)
	if err != nil {
		return models.ExerciseRecord{}, notFound(err, "exercise")
	}
	return r, nil
}

// CreateDurableExercise inserts a new exercise. Unknown categories are
// rejected by the table's check constraint.
func (db *DB) CreateDurableExercise(ctx context.Context, p models.ExercisePayload) (models.ExerciseRecord, error) {
	id := uuid.New()
	r := models.ExerciseRecord{
		ID:        id.String(),
		ContextID: p.ContextID,
		OwnerID:   p.OwnerID,
		Name:      p.Name,
		Category:  p.Category,
		Icon:      p.Icon,
		Metrics:   p.Metrics,
	}
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO exercises (id, context_id, owner_id, name, category, icon, metrics)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		id, p.ContextID, p.OwnerID, p.Name, p.Category, p.Icon, p.Metrics).Scan(&r.CreatedAt)
	if err != nil {
		return models.ExerciseRecord{}, fmt.Errorf("inserting exercise: %w", err)
	}
	return r, nil
}

// UpdateDurableExercise overwrites an exercise's name, display metadata and
// metric configuration.
func (db *DB) UpdateDurableExercise(ctx context.Context, id string, p models.ExercisePayload) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("exercise %q: %w", id, ErrNotFound)
	}
	tag, err := db.Pool.Exec(ctx,
		`UPDATE exercises SET name = $2, category = $3, icon = $4, metrics = $5
		 WHERE id = $1`,
		uid, p.Name, p.Category, p.Icon, p.Metrics)
	if err != nil {
		return fmt.Errorf("updating exercise: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	}
	return nil
}
