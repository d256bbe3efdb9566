package workout

import (
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// Outcome is the effect of a completion toggle.
type Outcome int

const (
	// Blocked means the set is locked and nothing changed.
	Blocked Outcome = iota
	Completed
	Uncompleted
)

func (o Outcome) String() string {
	switch o {
	case Blocked:
		return "blocked"
	case Completed:
		return "completed"
	case Uncompleted:
		return "uncompleted"
	}
	return "unknown"
}

// Toggle describes what ToggleComplete did.
type Toggle struct {
	Outcome Outcome
	// Set is a copy of the set after the toggle.
	Set models.WorkoutSet
	// SetNumber is the 1-based position of the set in its exercise.
	SetNumber int
	// Frozen is the local id of the set whose rest timer was stopped, if any,
	// and FrozenExercise the ui id of the exercise holding it.
	Frozen         string
	FrozenExercise string
	// DroppedLogID is the persisted id cleared by un-marking a logged set.
	DroppedLogID string
}

// RestClock is the live rest timer.
type RestClock struct {
	ExerciseUIID string
	LocalID      string
	StartedAt    time.Time
	Elapsed      time.Duration
}

// Set returns a copy of a set and its 1-based position.
func (r *Roster) Set(uiID, localID string) (models.WorkoutSet, int, error) {
	ei, si, err := r.locate(uiID, localID)
	if err != nil {
		return models.WorkoutSet{}, 0, err
	}
	return r.exercises[ei].Sets[si].Clone(), si + 1, nil
}

// AddSet appends a set prefilled with the previous set's values. Completion,
// lock, rest and persistence state are not copied.
func (r *Roster) AddSet(uiID string) (models.WorkoutSet, error) {
	ei, err := r.index(uiID)
	if err != nil {
		return models.WorkoutSet{}, err
	}
	next := models.WorkoutSet{LocalID: uuid.NewString()}
	if sets := r.exercises[ei].Sets; len(sets) > 0 {
		prev := sets[len(sets)-1].Clone()
		next.Weight = prev.Weight
		next.Reps = prev.Reps
		next.Time = prev.Time
		next.Distance = prev.Distance
		next.RPE = prev.RPE
		next.Custom = prev.Custom
	}
	r.exercises[ei].Sets = append(r.exercises[ei].Sets, next)
	return next.Clone(), nil
}

// RemoveSet removes a set. Sibling sets keep their persisted ids. Removing
// the last set removes the exercise, reported by exerciseRemoved.
func (r *Roster) RemoveSet(uiID, localID string) (removed models.WorkoutSet, exerciseRemoved bool, err error) {
	ei, si, err := r.locate(uiID, localID)
	if err != nil {
		return models.WorkoutSet{}, false, err
	}
	ex := &r.exercises[ei]
	removed = ex.Sets[si]
	if removed.Locked {
		return models.WorkoutSet{}, false, ErrSetLocked
	}
	ex.Sets = append(ex.Sets[:si], ex.Sets[si+1:]...)
	if len(ex.Sets) == 0 {
		r.exercises = append(r.exercises[:ei], r.exercises[ei+1:]...)
		exerciseRemoved = true
	}
	return removed, exerciseRemoved, nil
}

// UpdateField sets a numeric field. Locked sets reject edits; unlocked sets
// accept them whether or not they are completed.
func (r *Roster) UpdateField(uiID, localID, field string, v float64) error {
	if field == "" {
		return ErrUnknownField
	}
	ei, si, err := r.locate(uiID, localID)
	if err != nil {
		return err
	}
	s := &r.exercises[ei].Sets[si]
	if s.Locked {
		return ErrSetLocked
	}
	s.SetField(field, v)
	if s.PersistedID != "" {
		s.Dirty = true
	}
	return nil
}

// ToggleComplete flips completion.
//
//	Incomplete          -> Completed (locked when auto-lock is on), starts rest
//	Completed, unlocked -> Incomplete, clears its own rest timestamps
//	Completed, locked   -> no change
//
// Completing a set stops the running rest timer: the nearest earlier live
// timer is found by scanning backward across sets and exercises, and any
// other live timer is stopped too, so at most one timer is ever live.
func (r *Roster) ToggleComplete(uiID, localID string) (Toggle, error) {
	ei, si, err := r.locate(uiID, localID)
	if err != nil {
		return Toggle{}, err
	}
	s := &r.exercises[ei].Sets[si]

	if s.Locked {
		return Toggle{Outcome: Blocked, Set: s.Clone(), SetNumber: si + 1}, nil
	}

	if s.Completed {
		t := Toggle{Outcome: Uncompleted, DroppedLogID: s.PersistedID}
		s.Completed = false
		s.RestStartedAt, s.RestEndedAt = nil, nil
		s.PersistedID = ""
		s.Dirty = false
		t.Set = s.Clone()
		t.SetNumber = si + 1
		return t, nil
	}

	now := r.now()
	t := Toggle{Outcome: Completed, SetNumber: si + 1}
	if prev, pe := r.previousLive(ei, si); prev != nil {
		stopRest(prev, now)
		t.Frozen = prev.LocalID
		t.FrozenExercise = r.exercises[pe].UIID
	}
	r.freezeAll(s, now)

	start := now
	s.Completed = true
	s.Locked = r.autoLock
	s.RestStartedAt = &start
	s.RestEndedAt = nil
	t.Set = s.Clone()
	return t, nil
}

// ToggleLock flips the lock on a completed set.
func (r *Roster) ToggleLock(uiID, localID string) (bool, error) {
	ei, si, err := r.locate(uiID, localID)
	if err != nil {
		return false, err
	}
	s := &r.exercises[ei].Sets[si]
	if !s.Completed {
		return false, ErrNotCompleted
	}
	s.Locked = !s.Locked
	return s.Locked, nil
}

// MarkPersisted records a successful durable write for a set. A set that was
// removed since the write was issued is left alone and false is returned.
func (r *Roster) MarkPersisted(uiID, localID, persistedID string) bool {
	ei, si, err := r.locate(uiID, localID)
	if err != nil {
		return false
	}
	s := &r.exercises[ei].Sets[si]
	s.PersistedID = persistedID
	s.Dirty = false
	return true
}

// MarkDirty flags a persisted set whose values changed after its last write.
func (r *Roster) MarkDirty(uiID, localID string) bool {
	ei, si, err := r.locate(uiID, localID)
	if err != nil {
		return false
	}
	s := &r.exercises[ei].Sets[si]
	if s.PersistedID == "" {
		return false
	}
	s.Dirty = true
	return true
}

// LiveRest returns the running rest timer, if any.
func (r *Roster) LiveRest() (RestClock, bool) {
	for _, ex := range r.exercises {
		for _, s := range ex.Sets {
			if s.RestLive() {
				return RestClock{
					ExerciseUIID: ex.UIID,
					LocalID:      s.LocalID,
					StartedAt:    *s.RestStartedAt,
					Elapsed:      r.now().Sub(*s.RestStartedAt),
				}, true
			}
		}
	}
	return RestClock{}, false
}

// StopRest freezes the live rest timer, if any.
func (r *Roster) StopRest() {
	r.freezeAll(nil, r.now())
}

// previousLive scans backward from the set before (ei, si), across earlier
// exercises, for the nearest completed set with a live timer. It also returns
// the index of the exercise holding it.
func (r *Roster) previousLive(ei, si int) (*models.WorkoutSet, int) {
	for e := ei; e >= 0; e-- {
		sets := r.exercises[e].Sets
		start := len(sets) - 1
		if e == ei {
			start = si - 1
		}
		for i := start; i >= 0; i-- {
			if sets[i].Completed && sets[i].RestLive() {
				return &r.exercises[e].Sets[i], e
			}
		}
	}
	return nil, -1
}

// freezeAll stops every live timer except keep.
func (r *Roster) freezeAll(keep *models.WorkoutSet, at time.Time) {
	for ei := range r.exercises {
		for si := range r.exercises[ei].Sets {
			s := &r.exercises[ei].Sets[si]
			if s == keep || !s.RestLive() {
				continue
			}
			stopRest(s, at)
		}
	}
}

// stopRest ends a live timer at the given time. A set that is already logged
// becomes dirty so its entry gets the end time.
func stopRest(s *models.WorkoutSet, at time.Time) {
	end := at
	s.RestEndedAt = &end
	if s.PersistedID != "" {
		s.Dirty = true
	}
}
