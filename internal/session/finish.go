package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/progress"
	"github.com/claude/liftlog/internal/resolve"
	"golang.org/x/sync/errgroup"
)

// FinishReport summarizes a Finish or RetryUnresolved call.
type FinishReport struct {
	SessionID   string                 `json:"session_id"`
	Duration    time.Duration          `json:"duration"`
	SetsLogged  int                    `json:"sets_logged"`
	AutoSaved   int                    `json:"auto_saved"`
	Updated     int                    `json:"updated"`
	Resolved    int                    `json:"resolved"`
	Unresolved  []*ResolutionError     `json:"unresolved,omitempty"`
	WriteErrors []*TransientWriteError `json:"write_errors,omitempty"`
}

// retryState holds exercises left unresolved by a finished session.
type retryState struct {
	sessionID  string
	startedAt  time.Time
	gymContext string
	resolver   *resolve.Resolver
	exercises  []models.WorkoutExercise
}

// Finish closes the session. It waits for background writes, resolves every
// exercise still holding a non-real reference, logs completed sets that are
// not yet saved, auto-saves incomplete sets that carry values, writes through
// edits to logged sets and only then marks the session finished.
//
// A write failure keeps the session active with its draft so Finish can be
// called again. A resolution failure blocks only that exercise: the session
// still finishes and the exercise is kept for RetryUnresolved.
func (c *Controller) Finish(ctx context.Context) (FinishReport, error) {
	c.mu.Lock()
	if err := c.activeLocked(); err != nil {
		c.mu.Unlock()
		return FinishReport{}, err
	}
	if c.session.ID == "" {
		c.mu.Unlock()
		return FinishReport{}, ErrNoActiveSession
	}
	c.finishing = true
	gen := c.generation
	sessionID := c.session.ID
	resolver := c.resolver
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.finishing = false
		c.mu.Unlock()
	}()

	c.pending.Wait()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return FinishReport{}, ErrNoActiveSession
	}
	c.roster.StopRest()
	exercises := c.roster.Exercises()
	c.mu.Unlock()

	report := FinishReport{SessionID: sessionID}
	ids, unresolved := c.resolveAll(ctx, gen, resolver, exercises)
	report.Unresolved = unresolved
	report.Resolved = len(ids)

	var blocked []models.WorkoutExercise
	for _, ex := range exercises {
		id, ok := ids[ex.UIID]
		if !ok {
			blocked = append(blocked, ex)
			continue
		}
		c.flushExercise(ctx, gen, sessionID, id, ex, &report)
	}

	if len(report.WriteErrors) > 0 {
		c.mu.Lock()
		c.saveDraftLocked(ctx)
		c.mu.Unlock()
		return report, fmt.Errorf("finishing session: %d writes failed: %w", len(report.WriteErrors), report.WriteErrors[0])
	}

	if err := c.store.FinishSession(ctx, sessionID); err != nil {
		werr := &TransientWriteError{Op: "finish", Err: err}
		report.WriteErrors = append(report.WriteErrors, werr)
		c.mu.Lock()
		c.saveDraftLocked(ctx)
		c.mu.Unlock()
		return report, fmt.Errorf("finishing session: %w", werr)
	}

	c.mu.Lock()
	now := c.opts.Clock()
	c.session.FinishedAt = &now
	c.session.Status = models.StatusFinished
	report.Duration = now.Sub(c.session.StartedAt)
	if len(blocked) > 0 {
		if c.retry != nil {
			c.log.Warn("dropping unresolved exercises of an earlier session", "session_id", c.retry.sessionID, "exercises", len(c.retry.exercises))
		}
		c.retry = &retryState{
			sessionID:  sessionID,
			startedAt:  c.session.StartedAt,
			gymContext: c.session.GymContext,
			resolver:   resolver,
			exercises:  blocked,
		}
		c.saveRetryDraftLocked(ctx)
	} else if err := c.opts.Drafts.Clear(ctx, sessionID); err != nil {
		c.log.Warn("clearing draft failed", "session_id", sessionID, "error", err)
	}
	c.mu.Unlock()

	c.opts.Tracker.Notify(ctx, progress.Notification{Event: progress.SessionFinished, UserID: c.userID, SessionID: sessionID})
	c.log.Info("session finished", "session_id", sessionID,
		"duration", report.Duration, "logged", report.SetsLogged, "auto_saved", report.AutoSaved,
		"unresolved", len(report.Unresolved))
	return report, nil
}

// resolveAll resolves every exercise concurrently, bounded by
// FinishConcurrency. It returns durable ids keyed by exercise ui id.
func (c *Controller) resolveAll(ctx context.Context, gen uint64, resolver *resolve.Resolver, exercises []models.WorkoutExercise) (map[string]string, []*ResolutionError) {
	var (
		mu         sync.Mutex
		ids        = map[string]string{}
		unresolved []*ResolutionError
		g          errgroup.Group
	)
	g.SetLimit(c.opts.FinishConcurrency)
	for _, ex := range exercises {
		g.Go(func() error {
			id, err := c.resolveExercise(ctx, gen, resolver, ex.Ref)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				unresolved = append(unresolved, &ResolutionError{ExerciseUIID: ex.UIID, Name: ex.Ref.DisplayName, Err: err})
				return nil
			}
			ids[ex.UIID] = id
			return nil
		})
	}
	_ = g.Wait()
	return ids, unresolved
}

// flushExercise writes every unsaved set of one resolved exercise in set
// order and records the outcome in report.
func (c *Controller) flushExercise(ctx context.Context, gen uint64, sessionID, exerciseID string, ex models.WorkoutExercise, report *FinishReport) {
	for i, s := range ex.Sets {
		payload := models.NewSetPayload(s, i+1, ex.CategorySnapshot)
		switch {
		case s.PersistedID != "" && s.Dirty:
			if err := c.store.UpdateLoggedSet(ctx, s.PersistedID, payload); err != nil {
				report.WriteErrors = append(report.WriteErrors, &TransientWriteError{Op: "update", ExerciseUIID: ex.UIID, LocalID: s.LocalID, Err: err})
				continue
			}
			c.markPersisted(gen, ex.UIID, s.LocalID, s.PersistedID)
			report.Updated++
		case s.PersistedID != "":
		case s.Completed || s.HasValues():
			logID, err := c.store.LogSet(ctx, sessionID, exerciseID, payload)
			if err != nil {
				report.WriteErrors = append(report.WriteErrors, &TransientWriteError{Op: "log", ExerciseUIID: ex.UIID, LocalID: s.LocalID, Err: err})
				continue
			}
			c.markPersisted(gen, ex.UIID, s.LocalID, logID)
			if s.Completed {
				report.SetsLogged++
			} else {
				report.AutoSaved++
			}
		}
	}
}

func (c *Controller) markPersisted(gen uint64, uiID, localID, logID string) {
	c.mu.Lock()
	if gen == c.generation {
		c.roster.MarkPersisted(uiID, localID, logID)
	}
	c.mu.Unlock()
}

// saveRetryDraftLocked keeps unresolved exercises under the finished session
// id so their sets survive until RetryUnresolved succeeds.
func (c *Controller) saveRetryDraftLocked(ctx context.Context) {
	r := c.retry
	if r == nil {
		return
	}
	if len(r.exercises) == 0 {
		if err := c.opts.Drafts.Clear(ctx, r.sessionID); err != nil {
			c.log.Warn("clearing draft failed", "session_id", r.sessionID, "error", err)
		}
		return
	}
	err := c.opts.Drafts.Save(ctx, draftSnapshot(r.sessionID, c.userID, r.startedAt, r.gymContext, r.exercises, c.opts.Clock()))
	if err != nil {
		c.log.Warn("saving draft failed", "session_id", r.sessionID, "error", err)
	}
}

// Unresolved returns the exercises a finished session could not save.
func (c *Controller) Unresolved() []models.WorkoutExercise {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retry == nil {
		return nil
	}
	return models.CloneExercises(c.retry.exercises)
}

// RetryUnresolved retries resolution for exercises left over by Finish and
// logs their sets into the finished session.
func (c *Controller) RetryUnresolved(ctx context.Context) (FinishReport, error) {
	c.mu.Lock()
	r := c.retry
	if r == nil {
		c.mu.Unlock()
		return FinishReport{}, ErrNothingToRetry
	}
	exercises := models.CloneExercises(r.exercises)
	c.mu.Unlock()

	report := FinishReport{SessionID: r.sessionID}
	var remaining []models.WorkoutExercise
	for _, ex := range exercises {
		id, err := r.resolver.Resolve(ctx, ex.Ref)
		if err != nil {
			report.Unresolved = append(report.Unresolved, &ResolutionError{ExerciseUIID: ex.UIID, Name: ex.Ref.DisplayName, Err: err})
			remaining = append(remaining, ex)
			continue
		}
		report.Resolved++
		ex.Ref = ex.Ref.Resolved(id)

		failed := false
		for i := range ex.Sets {
			s := &ex.Sets[i]
			if s.PersistedID != "" || !(s.Completed || s.HasValues()) {
				continue
			}
			logID, err := c.store.LogSet(ctx, r.sessionID, id, models.NewSetPayload(*s, i+1, ex.CategorySnapshot))
			if err != nil {
				report.WriteErrors = append(report.WriteErrors, &TransientWriteError{Op: "log", ExerciseUIID: ex.UIID, LocalID: s.LocalID, Err: err})
				failed = true
				continue
			}
			s.PersistedID = logID
			if s.Completed {
				report.SetsLogged++
			} else {
				report.AutoSaved++
			}
		}
		if failed {
			remaining = append(remaining, ex)
		}
	}

	c.mu.Lock()
	if c.retry == r {
		r.exercises = remaining
		c.saveRetryDraftLocked(ctx)
		if len(remaining) == 0 {
			c.retry = nil
		}
	}
	c.mu.Unlock()

	c.log.Info("retried unresolved exercises", "session_id", r.sessionID,
		"resolved", report.Resolved, "remaining", len(remaining))
	if len(report.WriteErrors) > 0 {
		return report, fmt.Errorf("retrying unresolved: %w", report.WriteErrors[0])
	}
	return report, nil
}

// Cancel discards the session: in-memory state, the draft and every logged
// set in the store. Writes still in flight complete as harmless orphans.
func (c *Controller) Cancel(ctx context.Context) error {
	c.mu.Lock()
	if c.finishing {
		c.mu.Unlock()
		return ErrFinishInProgress
	}
	if c.session.Status == models.StatusFinished {
		c.mu.Unlock()
		return ErrSessionFinished
	}
	sessionID := c.session.ID
	gym := c.session.GymContext
	c.resetLocked(models.Session{UserID: c.userID, GymContext: gym, Status: models.StatusCancelled})
	c.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	if err := c.opts.Drafts.Clear(ctx, sessionID); err != nil {
		c.log.Warn("clearing draft failed", "session_id", sessionID, "error", err)
	}
	if err := c.store.DeleteSession(ctx, sessionID); err != nil {
		return &TransientWriteError{Op: "delete session", Err: err}
	}
	c.log.Info("session cancelled", "session_id", sessionID)
	return nil
}

// Restart cancels the session and immediately opens a fresh one in the same
// gym context. The new row is created when its first exercise is added.
func (c *Controller) Restart(ctx context.Context) (OpenResult, error) {
	if err := c.Cancel(ctx); err != nil {
		return OpenResult{}, err
	}
	c.mu.Lock()
	c.session.Status = models.StatusActive
	c.session.StartedAt = c.opts.Clock()
	c.mu.Unlock()
	return OpenResult{Prompt: PromptExercisePicker}, nil
}
