package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// ListRoutines returns the user's routines by name.
func (db *DB) ListRoutines(ctx context.Context, userID int) ([]models.RoutineSummary, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name FROM routines WHERE owner_id = $1 ORDER BY name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying routines: %w", err)
	}
	defer rows.Close()

	var result []models.RoutineSummary
	for rows.Next() {
		var (
			r  models.RoutineSummary
			id uuid.UUID
		)
		if err := rows.Scan(&id, &r.Name); err != nil {
			return nil, fmt.Errorf("scanning routine: %w", err)
		}
		r.ID = id.String()
		result = append(result, r)
	}
	return result, rows.Err()
}

// FetchRoutine returns a routine with its ordered exercise entries.
func (db *DB) FetchRoutine(ctx context.Context, routineID string) (models.RoutineDefinition, error) {
	uid, err := uuid.Parse(routineID)
	if err != nil {
		return models.RoutineDefinition{}, fmt.Errorf("routine %q: %w", routineID, ErrNotFound)
	}

	def := models.RoutineDefinition{ID: routineID}
	err = db.Pool.QueryRow(ctx,
		`SELECT owner_id, name FROM routines WHERE id = $1`, uid).Scan(&def.OwnerID, &def.Name)
	if err != nil {
		return models.RoutineDefinition{}, notFound(err, "routine")
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT exercise_id, name, category, icon, metrics, target_sets
		 FROM routine_exercises
		 WHERE routine_id = $1
		 ORDER BY position ASC`, uid)
	if err != nil {
		return models.RoutineDefinition{}, fmt.Errorf("querying routine exercises: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.RoutineExercise
		if err := rows.Scan(&e.ExerciseID, &e.Name, &e.Category, &e.Icon, &e.Metrics, &e.TargetSets); err != nil {
			return models.RoutineDefinition{}, fmt.Errorf("scanning routine exercise: %w", err)
		}
		def.Exercises = append(def.Exercises, e)
	}
	return def, rows.Err()
}
