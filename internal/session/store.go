package session

import (
	"context"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/resolve"
	"github.com/claude/liftlog/internal/storage"
)

// Store is the backing-store contract the session engine consumes.
type Store interface {
	resolve.CatalogStore

	ListRoutines(ctx context.Context, userID int) ([]models.RoutineSummary, error)
	FetchRoutine(ctx context.Context, routineID string) (models.RoutineDefinition, error)

	// FindOpenSession returns nil, nil when the user has no unfinished session.
	FindOpenSession(ctx context.Context, userID int) (*models.SessionRecord, error)
	CreateSession(ctx context.Context, userID int, contextID string) (string, error)
	FinishSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error

	LogSet(ctx context.Context, sessionID, exerciseID string, p models.SetPayload) (string, error)
	UpdateLoggedSet(ctx context.Context, logID string, p models.SetPayload) error
	DeleteLoggedSet(ctx context.Context, logID string) error
	FetchSessionLogs(ctx context.Context, sessionID string) ([]models.ExerciseLogs, error)
}

// Compile-time checks.
var (
	_ Store = (*storage.DB)(nil)
	_ Store = (*storage.MemoryStore)(nil)
)
