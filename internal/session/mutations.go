package session

import (
	"context"
	"errors"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/progress"
	"github.com/claude/liftlog/internal/resolve"
	"github.com/claude/liftlog/internal/workout"
)

// AddExercises commits catalog selections to the roster in one operation,
// starting the session in the store if this is its first exercise.
func (c *Controller) AddExercises(ctx context.Context, refs ...models.ExerciseReference) ([]models.WorkoutExercise, error) {
	entries := make([]workout.Entry, len(refs))
	for i, ref := range refs {
		entries[i] = workout.Entry{Ref: ref}
	}
	return c.addEntries(ctx, entries)
}

func (c *Controller) addEntries(ctx context.Context, entries []workout.Entry) ([]models.WorkoutExercise, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finishing {
		return nil, ErrFinishInProgress
	}
	if err := c.ensureStartedLocked(ctx); err != nil {
		return nil, err
	}
	added := c.roster.AddEntries(entries...)
	c.saveDraftLocked(ctx)
	return added, nil
}

// RemoveExercise drops an exercise. Its logged sets are deleted.
func (c *Controller) RemoveExercise(ctx context.Context, uiID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return err
	}
	ex, err := c.roster.RemoveExercise(uiID)
	if err != nil {
		return err
	}
	for _, s := range ex.Sets {
		if s.PersistedID != "" {
			c.enqueueLocked(ctx, uiID, c.deleteJob(s.PersistedID))
		}
	}
	c.saveDraftLocked(ctx)
	return nil
}

// MoveExercise reorders the roster.
func (c *Controller) MoveExercise(ctx context.Context, uiID string, to int) error {
	return c.mutate(ctx, func(r *workout.Roster) error { return r.MoveExercise(uiID, to) })
}

// SetMetric enables or disables a metric for one exercise.
func (c *Controller) SetMetric(ctx context.Context, uiID, name string, on bool) error {
	return c.mutate(ctx, func(r *workout.Roster) error { return r.SetMetric(uiID, name, on) })
}

// UpdateField edits one numeric value of a set. Locked sets reject edits.
func (c *Controller) UpdateField(ctx context.Context, uiID, localID, field string, v float64) error {
	return c.mutate(ctx, func(r *workout.Roster) error { return r.UpdateField(uiID, localID, field, v) })
}

// AddSet appends a set prefilled from the previous one.
func (c *Controller) AddSet(ctx context.Context, uiID string) (models.WorkoutSet, error) {
	var s models.WorkoutSet
	err := c.mutate(ctx, func(r *workout.Roster) error {
		var err error
		s, err = r.AddSet(uiID)
		return err
	})
	return s, err
}

// RemoveSet removes a set, deleting its log entry if it was logged. Removing
// the last set removes the exercise.
func (c *Controller) RemoveSet(ctx context.Context, uiID, localID string) (exerciseRemoved bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return false, err
	}
	removed, exerciseRemoved, err := c.roster.RemoveSet(uiID, localID)
	if err != nil {
		return false, err
	}
	if removed.PersistedID != "" {
		c.enqueueLocked(ctx, uiID, c.deleteJob(removed.PersistedID))
	}
	c.saveDraftLocked(ctx)
	return exerciseRemoved, nil
}

// ToggleLock flips the safety lock on a completed set.
func (c *Controller) ToggleLock(ctx context.Context, uiID, localID string) (bool, error) {
	var locked bool
	err := c.mutate(ctx, func(r *workout.Roster) error {
		var err error
		locked, err = r.ToggleLock(uiID, localID)
		return err
	})
	return locked, err
}

// ToggleComplete marks a set complete or un-marks it. Completion schedules a
// background resolve-and-log; the roster is never blocked on it. Un-marking a
// logged set deletes its log entry.
func (c *Controller) ToggleComplete(ctx context.Context, uiID, localID string) (workout.Toggle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return workout.Toggle{}, err
	}
	t, err := c.roster.ToggleComplete(uiID, localID)
	if err != nil {
		return workout.Toggle{}, err
	}
	switch t.Outcome {
	case workout.Blocked:
		return t, nil
	case workout.Completed:
		if t.Frozen != "" {
			c.enqueueLocked(ctx, t.FrozenExercise, c.updateJob(c.generation, t.FrozenExercise, t.Frozen))
		}
		c.enqueueLocked(ctx, uiID, c.logJob(c.generation, c.session.ID, c.resolver, uiID, localID))
		if !c.firstSet {
			c.firstSet = true
			c.opts.Tracker.Notify(ctx, progress.Notification{
				Event: progress.FirstSetCompleted, UserID: c.userID, SessionID: c.session.ID,
			})
		}
	case workout.Uncompleted:
		if t.DroppedLogID != "" {
			c.enqueueLocked(ctx, uiID, c.deleteJob(t.DroppedLogID))
		}
	}
	c.saveDraftLocked(ctx)
	return t, nil
}

func (c *Controller) mutate(ctx context.Context, fn func(r *workout.Roster) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.activeLocked(); err != nil {
		return err
	}
	if err := fn(c.roster); err != nil {
		return err
	}
	c.saveDraftLocked(ctx)
	return nil
}

// logJob resolves the exercise and logs one completed set. The payload is
// read when the write is issued, so edits made while queued are included.
func (c *Controller) logJob(gen uint64, sessionID string, resolver *resolve.Resolver, uiID, localID string) job {
	return func(ctx context.Context) {
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		ex, err := c.roster.Exercise(uiID)
		if err != nil {
			c.mu.Unlock()
			return
		}
		set, n, err := c.roster.Set(uiID, localID)
		if err != nil || !set.Completed || set.PersistedID != "" {
			c.mu.Unlock()
			return
		}
		payload := models.NewSetPayload(set, n, ex.CategorySnapshot)
		c.mu.Unlock()

		exerciseID, err := c.resolveExercise(ctx, gen, resolver, ex.Ref)
		if err != nil {
			c.mu.Lock()
			if gen == c.generation {
				c.noticeLocked(&ResolutionError{ExerciseUIID: uiID, Name: ex.Ref.DisplayName, Err: err})
			}
			c.mu.Unlock()
			c.log.Warn("resolving exercise failed, set stays unsaved", "name", ex.Ref.DisplayName, "error", err)
			return
		}

		logID, err := c.store.LogSet(ctx, sessionID, exerciseID, payload)

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			if err == nil {
				// The session row may already be gone; the entry is removed either way.
				if err := c.store.DeleteLoggedSet(ctx, logID); err != nil {
					c.log.Warn("deleting orphaned log entry failed", "session_id", sessionID, "log_id", logID, "error", err)
				}
			}
			return
		}
		if err != nil {
			c.noticeLocked(&TransientWriteError{Op: "log", ExerciseUIID: uiID, LocalID: localID, Err: err})
			c.mu.Unlock()
			c.log.Warn("logging set failed", "session_id", sessionID, "local_id", localID, "error", err)
			return
		}
		cur, curN, curErr := c.roster.Set(uiID, localID)
		if curErr != nil || !cur.Completed || cur.PersistedID != "" {
			c.mu.Unlock()
			// Un-marked, removed or already logged while the write was in flight.
			if err := c.store.DeleteLoggedSet(ctx, logID); err != nil {
				c.log.Warn("deleting superseded log entry failed", "log_id", logID, "error", err)
			}
			return
		}
		c.roster.MarkPersisted(uiID, localID, logID)
		if !samePayload(payload, models.NewSetPayload(cur, curN, ex.CategorySnapshot)) {
			c.roster.MarkDirty(uiID, localID)
		}
		c.saveDraftLocked(ctx)
		c.mu.Unlock()
	}
}

// updateJob writes a logged set's current values through to its entry. It
// does nothing unless the set is logged and dirty when the job runs.
func (c *Controller) updateJob(gen uint64, uiID, localID string) job {
	return func(ctx context.Context) {
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		ex, err := c.roster.Exercise(uiID)
		if err != nil {
			c.mu.Unlock()
			return
		}
		set, n, err := c.roster.Set(uiID, localID)
		if err != nil || set.PersistedID == "" || !set.Dirty {
			c.mu.Unlock()
			return
		}
		logID := set.PersistedID
		payload := models.NewSetPayload(set, n, ex.CategorySnapshot)
		c.mu.Unlock()

		err = c.store.UpdateLoggedSet(ctx, logID, payload)

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation {
			return
		}
		if err != nil {
			// The set stays dirty; Finish writes it through.
			c.noticeLocked(&TransientWriteError{Op: "update", ExerciseUIID: uiID, LocalID: localID, Err: err})
			c.log.Warn("updating logged set failed", "log_id", logID, "error", err)
			return
		}
		cur, curN, err := c.roster.Set(uiID, localID)
		if err != nil || cur.PersistedID != logID {
			return
		}
		if samePayload(payload, models.NewSetPayload(cur, curN, ex.CategorySnapshot)) {
			c.roster.MarkPersisted(uiID, localID, logID)
			c.saveDraftLocked(ctx)
		}
	}
}

func (c *Controller) deleteJob(logID string) job {
	return func(ctx context.Context) {
		if err := c.store.DeleteLoggedSet(ctx, logID); err != nil {
			c.log.Warn("deleting log entry failed", "log_id", logID, "error", err)
		}
	}
}

// resolveExercise returns a durable id for ref and re-tags matching roster
// exercises as real.
func (c *Controller) resolveExercise(ctx context.Context, gen uint64, resolver *resolve.Resolver, ref models.ExerciseReference) (string, error) {
	if ref.IsDurable() {
		return ref.RawID, nil
	}
	if resolver == nil {
		return "", errors.New("no resolver for session")
	}
	id, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	if gen == c.generation && c.roster.ReplaceRefs(ref, ref.Resolved(id)) > 0 {
		c.saveDraftLocked(ctx)
	}
	c.mu.Unlock()
	return id, nil
}

// samePayload compares the values that a log entry stores.
func samePayload(a, b models.SetPayload) bool {
	if a.SetNumber != b.SetNumber || a.Weight != b.Weight || a.Reps != b.Reps || a.Time != b.Time ||
		a.Distance != b.Distance || a.RPE != b.RPE || a.Completed != b.Completed || len(a.Custom) != len(b.Custom) {
		return false
	}
	if !sameTime(a.RestStartedAt, b.RestStartedAt) || !sameTime(a.RestEndedAt, b.RestEndedAt) {
		return false
	}
	for k, v := range a.Custom {
		if bv, ok := b.Custom[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
