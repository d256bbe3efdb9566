package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/progress"
	"github.com/claude/liftlog/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

var testStart = time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)

// flakyStore wraps the memory store with switchable failures.
type flakyStore struct {
	*storage.MemoryStore

	mu         sync.Mutex
	failLog    error
	failCreate error
	failFinish error
	failDelete error
	logGate    chan struct{}
	logCalls   int
}

func newFlakyStore() *flakyStore {
	m := storage.NewMemoryStore()
	m.SetClock(stepClock(testStart))
	return &flakyStore{MemoryStore: m}
}

func (f *flakyStore) setFailLog(err error) {
	f.mu.Lock()
	f.failLog = err
	f.mu.Unlock()
}

func (f *flakyStore) setFailCreate(err error) {
	f.mu.Lock()
	f.failCreate = err
	f.mu.Unlock()
}

func (f *flakyStore) LogSet(ctx context.Context, sessionID, exerciseID string, p models.SetPayload) (string, error) {
	f.mu.Lock()
	f.logCalls++
	err, gate := f.failLog, f.logGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return "", err
	}
	return f.MemoryStore.LogSet(ctx, sessionID, exerciseID, p)
}

func (f *flakyStore) CreateDurableExercise(ctx context.Context, p models.ExercisePayload) (models.ExerciseRecord, error) {
	f.mu.Lock()
	err := f.failCreate
	f.mu.Unlock()
	if err != nil {
		return models.ExerciseRecord{}, err
	}
	return f.MemoryStore.CreateDurableExercise(ctx, p)
}

func (f *flakyStore) FinishSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	err := f.failFinish
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.FinishSession(ctx, sessionID)
}

func (f *flakyStore) DeleteSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	err := f.failDelete
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.DeleteSession(ctx, sessionID)
}

type fixture struct {
	store   *flakyStore
	drafts  *draft.MemoryStore
	tracker *progress.Recorder
	opts    Options
}

func newFixture() *fixture {
	f := &fixture{
		store:   newFlakyStore(),
		drafts:  draft.NewMemoryStore(),
		tracker: &progress.Recorder{},
	}
	f.opts = DefaultOptions()
	f.opts.Drafts = f.drafts
	f.opts.Tracker = f.tracker
	f.opts.Clock = stepClock(testStart)
	return f
}

func (f *fixture) controller() *Controller {
	return New(f.store, 7, f.opts, discardLogger())
}

// seedExercise creates a durable item owned by the test user in the default context.
func (f *fixture) seedExercise(t *testing.T, name, category string) models.ExerciseRecord {
	t.Helper()
	rec, err := f.store.MemoryStore.CreateDurableExercise(context.Background(), models.ExercisePayload{
		OwnerID: 7, Name: name, Category: category, Metrics: models.DefaultMetrics(),
	})
	if err != nil {
		t.Fatalf("seeding %s: %v", name, err)
	}
	return rec
}

func (f *fixture) logs(t *testing.T, sessionID string) []models.LoggedSet {
	t.Helper()
	groups, err := f.store.FetchSessionLogs(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("fetching logs: %v", err)
	}
	var out []models.LoggedSet
	for _, g := range groups {
		out = append(out, g.Sets...)
	}
	return out
}

func mustOpen(t *testing.T, c *Controller) OpenResult {
	t.Helper()
	res, err := c.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return res
}

func mustAdd(t *testing.T, c *Controller, refs ...models.ExerciseReference) []models.WorkoutExercise {
	t.Helper()
	added, err := c.AddExercises(context.Background(), refs...)
	if err != nil {
		t.Fatalf("AddExercises: %v", err)
	}
	return added
}

var benchTemplate = models.ExerciseReference{
	Provenance: models.ProvenanceTemplate, RawID: "bench press", DisplayName: "Bench Press", Category: "chest", Icon: "barbell",
}
