// Package workout holds the in-memory roster of one session: the exercises,
// their ordered sets, and the completion, lock and rest-timer state machine.
//
// A Roster is not safe for concurrent use; the session controller serializes
// access to it.
package workout

import (
	"errors"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

var (
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrSetNotFound      = errors.New("set not found")
	ErrSetLocked        = errors.New("set is locked")
	ErrNotCompleted     = errors.New("set is not completed")
	ErrUnknownField     = errors.New("unknown field")
)

// Entry describes one exercise to add to the roster.
type Entry struct {
	Ref models.ExerciseReference
	// Metrics overrides the catalog configuration when set.
	Metrics *models.MetricSet
	// Sets is the number of empty sets to seed; values below 1 mean 1.
	Sets int
}

// Roster is the ordered list of exercises in one session.
type Roster struct {
	exercises []models.WorkoutExercise
	now       func() time.Time
	autoLock  bool
}

// Option configures a Roster.
type Option func(*Roster)

// WithClock sets the time source used for rest timers.
func WithClock(now func() time.Time) Option {
	return func(r *Roster) { r.now = now }
}

// WithAutoLock controls whether completing a set also locks it.
func WithAutoLock(on bool) Option {
	return func(r *Roster) { r.autoLock = on }
}

// New creates an empty roster. Sets auto-lock on completion by default.
func New(opts ...Option) *Roster {
	r := &Roster{now: time.Now, autoLock: true}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Restore builds a roster from a snapshot, repairing invariants a stale or
// hand-edited snapshot may violate: empty exercises are dropped, locked sets
// must be completed, and only the most recently started rest timer stays live.
func Restore(exercises []models.WorkoutExercise, opts ...Option) *Roster {
	r := New(opts...)
	for _, ex := range models.CloneExercises(exercises) {
		if len(ex.Sets) == 0 {
			continue
		}
		if ex.UIID == "" {
			ex.UIID = uuid.NewString()
		}
		for i := range ex.Sets {
			s := &ex.Sets[i]
			if s.LocalID == "" {
				s.LocalID = uuid.NewString()
			}
			if s.Locked && !s.Completed {
				s.Locked = false
			}
			if !s.Completed {
				s.RestStartedAt, s.RestEndedAt = nil, nil
			}
		}
		r.exercises = append(r.exercises, ex)
	}

	var latest *models.WorkoutSet
	for ei := range r.exercises {
		for si := range r.exercises[ei].Sets {
			s := &r.exercises[ei].Sets[si]
			if !s.RestLive() {
				continue
			}
			if latest == nil || s.RestStartedAt.After(*latest.RestStartedAt) {
				latest = s
			}
		}
	}
	for ei := range r.exercises {
		for si := range r.exercises[ei].Sets {
			s := &r.exercises[ei].Sets[si]
			if s != latest && s.RestLive() {
				stopRest(s, r.supersededAt(*s.RestStartedAt))
			}
		}
	}
	return r
}

// supersededAt is when a rest timer started at start should have stopped:
// the next rest start in the roster, or now when nothing started later.
func (r *Roster) supersededAt(start time.Time) time.Time {
	var end time.Time
	for _, ex := range r.exercises {
		for _, s := range ex.Sets {
			if s.RestStartedAt == nil || !s.RestStartedAt.After(start) {
				continue
			}
			if end.IsZero() || s.RestStartedAt.Before(end) {
				end = *s.RestStartedAt
			}
		}
	}
	if end.IsZero() {
		return r.now()
	}
	return end
}

// Len returns the number of exercises.
func (r *Roster) Len() int {
	return len(r.exercises)
}

// Exercises returns a deep copy of the roster.
func (r *Roster) Exercises() []models.WorkoutExercise {
	return models.CloneExercises(r.exercises)
}

// Exercise returns a copy of one exercise.
func (r *Roster) Exercise(uiID string) (models.WorkoutExercise, error) {
	ei, err := r.index(uiID)
	if err != nil {
		return models.WorkoutExercise{}, err
	}
	return r.exercises[ei].Clone(), nil
}

// Add commits catalog selections to the roster in one operation. Each becomes
// a new exercise seeded with one empty set.
func (r *Roster) Add(refs ...models.ExerciseReference) []models.WorkoutExercise {
	entries := make([]Entry, len(refs))
	for i, ref := range refs {
		entries[i] = Entry{Ref: ref}
	}
	return r.AddEntries(entries...)
}

// AddEntries appends exercises and returns copies of what was added.
func (r *Roster) AddEntries(entries ...Entry) []models.WorkoutExercise {
	added := make([]models.WorkoutExercise, 0, len(entries))
	for _, e := range entries {
		n := e.Sets
		if n < 1 {
			n = 1
		}
		ex := models.WorkoutExercise{
			UIID:             uuid.NewString(),
			Ref:              e.Ref,
			Metrics:          metricsFor(e),
			CategorySnapshot: e.Ref.Category,
		}
		for range n {
			ex.Sets = append(ex.Sets, models.WorkoutSet{LocalID: uuid.NewString()})
		}
		r.exercises = append(r.exercises, ex)
		added = append(added, ex.Clone())
	}
	return added
}

func metricsFor(e Entry) models.MetricSet {
	switch {
	case e.Metrics != nil:
		return e.Metrics.Clone()
	case e.Ref.Provenance == models.ProvenanceTemplate:
		return models.DefaultMetrics()
	case e.Ref.Metrics != nil:
		return e.Ref.Metrics.Clone()
	default:
		return models.DefaultMetrics()
	}
}

// RemoveExercise drops an exercise and returns it.
func (r *Roster) RemoveExercise(uiID string) (models.WorkoutExercise, error) {
	ei, err := r.index(uiID)
	if err != nil {
		return models.WorkoutExercise{}, err
	}
	ex := r.exercises[ei]
	r.exercises = append(r.exercises[:ei], r.exercises[ei+1:]...)
	return ex, nil
}

// MoveExercise moves an exercise to position to, clamped to the roster bounds.
func (r *Roster) MoveExercise(uiID string, to int) error {
	ei, err := r.index(uiID)
	if err != nil {
		return err
	}
	if to < 0 {
		to = 0
	}
	if to >= len(r.exercises) {
		to = len(r.exercises) - 1
	}
	ex := r.exercises[ei]
	r.exercises = append(r.exercises[:ei], r.exercises[ei+1:]...)
	r.exercises = append(r.exercises[:to], append([]models.WorkoutExercise{ex}, r.exercises[to:]...)...)
	return nil
}

// SetMetric toggles one metric of an exercise.
func (r *Roster) SetMetric(uiID, name string, on bool) error {
	if name == "" {
		return ErrUnknownField
	}
	ei, err := r.index(uiID)
	if err != nil {
		return err
	}
	r.exercises[ei].Metrics = r.exercises[ei].Metrics.With(name, on)
	return nil
}

// ReplaceRef swaps an exercise's reference, used once it has been resolved.
func (r *Roster) ReplaceRef(uiID string, ref models.ExerciseReference) error {
	ei, err := r.index(uiID)
	if err != nil {
		return err
	}
	r.exercises[ei].Ref = ref
	return nil
}

// ReplaceRefs resolves every exercise whose reference matches from.
// Returns how many were updated.
func (r *Roster) ReplaceRefs(from, to models.ExerciseReference) int {
	n := 0
	for i := range r.exercises {
		ref := r.exercises[i].Ref
		if ref.Provenance == from.Provenance && ref.RawID == from.RawID && ref.DisplayName == from.DisplayName {
			r.exercises[i].Ref = to
			n++
		}
	}
	return n
}

func (r *Roster) index(uiID string) (int, error) {
	for i := range r.exercises {
		if r.exercises[i].UIID == uiID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrExerciseNotFound, uiID)
}

func (r *Roster) locate(uiID, localID string) (int, int, error) {
	ei, err := r.index(uiID)
	if err != nil {
		return -1, -1, err
	}
	for si := range r.exercises[ei].Sets {
		if r.exercises[ei].Sets[si].LocalID == localID {
			return ei, si, nil
		}
	}
	return -1, -1, fmt.Errorf("%w: %s", ErrSetNotFound, localID)
}
