// Package draft is a best-effort local cache of in-progress sessions, so an
// interrupted session can resume with edits that never reached the store.
// Losing a draft only loses unsynced edits; it never touches durable data.
package draft

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// ErrNoSession is returned when saving a snapshot without a session id.
var ErrNoSession = errors.New("draft has no session id")

// Snapshot is the saved state of one session.
type Snapshot struct {
	SessionID  string                   `json:"session_id"`
	UserID     int                      `json:"user_id"`
	StartedAt  time.Time                `json:"started_at"`
	GymContext string                   `json:"gym_context,omitempty"`
	Exercises  []models.WorkoutExercise `json:"exercises"`
	SavedAt    time.Time                `json:"saved_at"`
}

// Store persists drafts keyed by session id.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	// Load returns nil, nil when no draft exists.
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Clear(ctx context.Context, sessionID string) error
}

// Compile-time checks.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// MemoryStore keeps drafts in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	drafts map[string]Snapshot
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory draft store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: map[string]Snapshot{}, now: time.Now}
}

func (m *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	if snap.SessionID == "" {
		return ErrNoSession
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = m.now()
	}
	snap.Exercises = models.CloneExercises(snap.Exercises)
	m.mu.Lock()
	m.drafts[snap.SessionID] = snap
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.drafts[sessionID]
	if !ok {
		return nil, nil
	}
	snap.Exercises = models.CloneExercises(snap.Exercises)
	return &snap, nil
}

func (m *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.drafts, sessionID)
	m.mu.Unlock()
	return nil
}
