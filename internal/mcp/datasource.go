package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// SessionState is a read-only view of a user's open session.
type SessionState struct {
	// Session is nil when the user has no open session.
	Session      *models.Session       `json:"session,omitempty"`
	Logged       []models.ExerciseLogs `json:"logged"`
	DraftSavedAt *time.Time            `json:"draft_saved_at,omitempty"`
}

// DataSource abstracts where session data comes from. Both StoreSource
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ActiveSession(ctx context.Context, userID int) (*SessionState, error)
	ListCandidates(ctx context.Context, userID int, contextID string, f catalog.Filter) ([]models.ExerciseReference, error)
	SessionLogs(ctx context.Context, userID int, sessionID string) ([]models.ExerciseLogs, error)
}

// Reader is the part of the backing store StoreSource reads.
type Reader interface {
	FindOpenSession(ctx context.Context, userID int) (*models.SessionRecord, error)
	GetSession(ctx context.Context, sessionID string) (models.SessionRecord, error)
	FetchInventory(ctx context.Context, contextID string) ([]models.ExerciseRecord, error)
	FetchSessionLogs(ctx context.Context, sessionID string) ([]models.ExerciseLogs, error)
}

// StoreSource reads the backing store and the local draft cache directly.
type StoreSource struct {
	store  Reader
	drafts draft.Store
}

// Compile-time checks.
var (
	_ DataSource = (*StoreSource)(nil)
	_ Reader     = (*storage.DB)(nil)
	_ Reader     = (*storage.MemoryStore)(nil)
)

// NewStoreSource creates a StoreSource. drafts may be nil.
func NewStoreSource(store Reader, drafts draft.Store) *StoreSource {
	return &StoreSource{store: store, drafts: drafts}
}

func (s *StoreSource) ActiveSession(ctx context.Context, userID int) (*SessionState, error) {
	rec, err := s.store.FindOpenSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("finding open session: %w", err)
	}
	if rec == nil {
		return &SessionState{Logged: []models.ExerciseLogs{}}, nil
	}
	logs, err := s.store.FetchSessionLogs(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching session logs: %w", err)
	}
	state := &SessionState{
		Session: &models.Session{
			ID:         rec.ID,
			UserID:     rec.UserID,
			StartedAt:  rec.StartedAt,
			GymContext: rec.ContextID,
			Status:     models.StatusActive,
		},
		Logged: logs,
	}
	if s.drafts != nil {
		if snap, err := s.drafts.Load(ctx, rec.ID); err == nil && snap != nil {
			state.Session.Exercises = snap.Exercises
			saved := snap.SavedAt
			state.DraftSavedAt = &saved
		}
	}
	if state.Logged == nil {
		state.Logged = []models.ExerciseLogs{}
	}
	return state, nil
}

func (s *StoreSource) ListCandidates(ctx context.Context, userID int, contextID string, f catalog.Filter) ([]models.ExerciseReference, error) {
	inv, err := s.store.FetchInventory(ctx, contextID)
	if err != nil {
		return nil, fmt.Errorf("fetching inventory: %w", err)
	}
	return catalog.NewView(userID, inv, catalog.StandardTemplates).ListCandidates(f), nil
}

func (s *StoreSource) SessionLogs(ctx context.Context, userID int, sessionID string) ([]models.ExerciseLogs, error) {
	rec, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if rec.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}
	return s.store.FetchSessionLogs(ctx, sessionID)
}
