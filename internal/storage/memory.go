package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process implementation of the same repository methods
// as DB. It enforces the schema's category check and cascades session deletes
// so it behaves like Postgres for the session engine.
type MemoryStore struct {
	mu sync.RWMutex

	now func() time.Time

	users     map[string]int
	nextUser  int
	exercises map[string]models.ExerciseRecord
	routines  map[string]models.RoutineDefinition
	sessions  map[string]models.SessionRecord
	sets      map[string]models.LoggedSet
	// order keeps insertion order so listings are stable.
	exerciseOrder []string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:       time.Now,
		users:     map[string]int{},
		exercises: map[string]models.ExerciseRecord{},
		routines:  map[string]models.RoutineDefinition{},
		sessions:  map[string]models.SessionRecord{},
		sets:      map[string]models.LoggedSet{},
	}
}

// SetClock replaces the time source used for created/logged timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// GetOrCreateUser finds or creates a user by login name.
func (m *MemoryStore) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return 0, ErrEmptyLogin
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.users[login]; ok {
		return id, nil
	}
	m.nextUser++
	m.users[login] = m.nextUser
	return m.nextUser, nil
}

func (m *MemoryStore) FetchInventory(ctx context.Context, contextID string) ([]models.ExerciseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.ExerciseRecord
	for _, id := range m.exerciseOrder {
		if rec := m.exercises[id]; rec.ContextID == contextID {
			rec.Metrics = rec.Metrics.Clone()
			result = append(result, rec)
		}
	}
	return result, nil
}

func (m *MemoryStore) GetExercise(ctx context.Context, id string) (models.ExerciseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.exercises[id]
	if !ok {
		return models.ExerciseRecord{}, fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (m *MemoryStore) CreateDurableExercise(ctx context.Context, p models.ExercisePayload) (models.ExerciseRecord, error) {
	if !catalog.ValidCategory(p.Category) {
		return models.ExerciseRecord{}, fmt.Errorf("inserting exercise: invalid category %q", p.Category)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := models.ExerciseRecord{
		ID:        uuid.NewString(),
		ContextID: p.ContextID,
		OwnerID:   p.OwnerID,
		Name:      p.Name,
		Category:  p.Category,
		Icon:      p.Icon,
		Metrics:   p.Metrics.Clone(),
		CreatedAt: m.now(),
	}
	m.exercises[rec.ID] = rec
	m.exerciseOrder = append(m.exerciseOrder, rec.ID)
	return rec, nil
}

func (m *MemoryStore) UpdateDurableExercise(ctx context.Context, id string, p models.ExercisePayload) error {
	if !catalog.ValidCategory(p.Category) {
		return fmt.Errorf("updating exercise: invalid category %q", p.Category)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.exercises[id]
	if !ok {
		return fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	}
	rec.Name = p.Name
	rec.Category = p.Category
	rec.Icon = p.Icon
	rec.Metrics = p.Metrics.Clone()
	m.exercises[id] = rec
	return nil
}

// SaveRoutine stores a routine, assigning an id when it has none.
func (m *MemoryStore) SaveRoutine(ctx context.Context, def models.RoutineDefinition) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	def.Exercises = append([]models.RoutineExercise(nil), def.Exercises...)
	m.routines[def.ID] = def
	return def.ID, nil
}

func (m *MemoryStore) ListRoutines(ctx context.Context, userID int) ([]models.RoutineSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.RoutineSummary
	for _, def := range m.routines {
		if def.OwnerID == userID {
			result = append(result, models.RoutineSummary{ID: def.ID, Name: def.Name})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MemoryStore) FetchRoutine(ctx context.Context, routineID string) (models.RoutineDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.routines[routineID]
	if !ok {
		return models.RoutineDefinition{}, fmt.Errorf("routine %s: %w", routineID, ErrNotFound)
	}
	def.Exercises = append([]models.RoutineExercise(nil), def.Exercises...)
	return def, nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, userID int, contextID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := models.SessionRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		ContextID: contextID,
		StartedAt: m.now(),
	}
	m.sessions[rec.ID] = rec
	return rec.ID, nil
}

func (m *MemoryStore) FindOpenSession(ctx context.Context, userID int) (*models.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.SessionRecord
	for _, rec := range m.sessions {
		if rec.UserID != userID || rec.FinishedAt != nil {
			continue
		}
		if latest == nil || rec.StartedAt.After(latest.StartedAt) {
			r := rec
			latest = &r
		}
	}
	return latest, nil
}

func (m *MemoryStore) GetSession(ctx context.Context, sessionID string) (models.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return models.SessionRecord{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return rec, nil
}

func (m *MemoryStore) FinishSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if rec.FinishedAt == nil {
		t := m.now()
		rec.FinishedAt = &t
		m.sessions[sessionID] = rec
	}
	return nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	for id, s := range m.sets {
		if s.SessionID == sessionID {
			delete(m.sets, id)
		}
	}
	return nil
}

// LogSet fails like a foreign-key violation when the session or exercise is gone.
func (m *MemoryStore) LogSet(ctx context.Context, sessionID, exerciseID string, p models.SetPayload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return "", fmt.Errorf("inserting session set: session %s: %w", sessionID, ErrNotFound)
	}
	if _, ok := m.exercises[exerciseID]; !ok {
		return "", fmt.Errorf("inserting session set: exercise %s: %w", exerciseID, ErrNotFound)
	}
	s := models.LoggedSet{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		ExerciseID: exerciseID,
		LoggedAt:   m.now(),
		SetPayload: clonePayload(p),
	}
	m.sets[s.ID] = s
	return s.ID, nil
}

func (m *MemoryStore) UpdateLoggedSet(ctx context.Context, logID string, p models.SetPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[logID]
	if !ok {
		return fmt.Errorf("logged set %s: %w", logID, ErrNotFound)
	}
	s.SetPayload = clonePayload(p)
	s.LoggedAt = m.now()
	m.sets[logID] = s
	return nil
}

func (m *MemoryStore) DeleteLoggedSet(ctx context.Context, logID string) error {
	m.mu.Lock()
	delete(m.sets, logID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) FetchSessionLogs(ctx context.Context, sessionID string) ([]models.ExerciseLogs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sets []models.LoggedSet
	for _, s := range m.sets {
		if s.SessionID == sessionID {
			sets = append(sets, s)
		}
	}
	first := map[string]time.Time{}
	for _, s := range sets {
		if t, ok := first[s.ExerciseID]; !ok || s.LoggedAt.Before(t) {
			first[s.ExerciseID] = s.LoggedAt
		}
	}
	sort.SliceStable(sets, func(i, j int) bool {
		a, b := sets[i], sets[j]
		if a.ExerciseID != b.ExerciseID {
			fa, fb := first[a.ExerciseID], first[b.ExerciseID]
			if !fa.Equal(fb) {
				return fa.Before(fb)
			}
			return a.ExerciseID < b.ExerciseID
		}
		if a.SetNumber != b.SetNumber {
			return a.SetNumber < b.SetNumber
		}
		return a.LoggedAt.Before(b.LoggedAt)
	})

	var (
		result []models.ExerciseLogs
		index  = map[string]int{}
	)
	for _, s := range sets {
		i, ok := index[s.ExerciseID]
		if !ok {
			i = len(result)
			index[s.ExerciseID] = i
			result = append(result, models.ExerciseLogs{Exercise: m.exercises[s.ExerciseID]})
		}
		s.SetPayload = clonePayload(s.SetPayload)
		result[i].Sets = append(result[i].Sets, s)
	}
	return result, nil
}

// SetCount returns the number of logged sets across all sessions.
func (m *MemoryStore) SetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sets)
}

func clonePayload(p models.SetPayload) models.SetPayload {
	if p.Custom != nil {
		c := make(map[string]float64, len(p.Custom))
		for k, v := range p.Custom {
			c[k] = v
		}
		p.Custom = c
	}
	return p
}
