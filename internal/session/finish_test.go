package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/progress"
)

// TestFinishAutoSavesSetsWithValues is Scenario E: an incomplete set with
// values is saved exactly once, an empty set is not saved at all.
func TestFinishAutoSavesSetsWithValues(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	ex := mustAdd(t, c, models.RealRef(rec))[0]
	_ = c.UpdateField(ctx, ex.UIID, ex.Sets[0].LocalID, models.MetricWeight, 80)
	_ = c.UpdateField(ctx, ex.UIID, ex.Sets[0].LocalID, models.MetricReps, 5)
	empty, _ := c.AddSet(ctx, ex.UIID)
	_ = c.UpdateField(ctx, ex.UIID, empty.LocalID, models.MetricWeight, 0)
	_ = c.UpdateField(ctx, ex.UIID, empty.LocalID, models.MetricReps, 0)

	report, err := c.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.AutoSaved != 1 || report.SetsLogged != 0 {
		t.Errorf("report = %+v, want one auto-saved set", report)
	}
	logs := f.logs(t, report.SessionID)
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	if l := logs[0]; l.Weight != 80 || l.Reps != 5 || l.Completed || l.SetNumber != 1 {
		t.Errorf("auto-saved entry = %+v", l)
	}

	s := c.Session()
	if s.Status != models.StatusFinished || s.FinishedAt == nil {
		t.Errorf("session = %v finished_at %v, want finished", s.Status, s.FinishedAt)
	}
	if report.Duration <= 0 {
		t.Errorf("duration = %v, want positive", report.Duration)
	}
	if rec, _ := f.store.FindOpenSession(ctx, 7); rec != nil {
		t.Error("session still open in store")
	}
	if snap, _ := f.drafts.Load(ctx, report.SessionID); snap != nil {
		t.Error("draft not cleared")
	}
	if n := f.tracker.Count(progress.SessionFinished); n != 1 {
		t.Errorf("session_finished notifications = %d, want 1", n)
	}

	if _, err := c.Finish(ctx); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("second finish err = %v, want ErrSessionFinished", err)
	}
	if n := len(f.logs(t, report.SessionID)); n != 1 {
		t.Errorf("logs after second finish = %d, want 1", n)
	}
}

// TestFinishLogsPendingCompletions verifies completed sets whose background
// write failed are logged by Finish.
func TestFinishLogsPendingCompletions(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	ex := mustAdd(t, c, models.RealRef(rec))[0]
	_ = c.UpdateField(ctx, ex.UIID, ex.Sets[0].LocalID, models.MetricWeight, 100)

	f.store.setFailLog(errors.New("timeout"))
	c.ToggleComplete(ctx, ex.UIID, ex.Sets[0].LocalID)
	c.Wait()
	f.store.setFailLog(nil)

	report, err := c.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.SetsLogged != 1 || report.AutoSaved != 0 {
		t.Errorf("report = %+v, want one logged set", report)
	}
	logs := f.logs(t, report.SessionID)
	if len(logs) != 1 || !logs[0].Completed {
		t.Errorf("logs = %+v, want one completed entry", logs)
	}
}

// TestFinishResolvesTemplatesConcurrently verifies every non-real exercise is
// resolved at finish and its sets are saved against the new item.
func TestFinishResolvesTemplatesConcurrently(t *testing.T) {
	f := newFixture()
	f.opts.FinishConcurrency = 2
	c := f.controller()
	ctx := context.Background()
	mustOpen(t, c)
	refs := []models.ExerciseReference{
		benchTemplate,
		{Provenance: models.ProvenanceTemplate, RawID: "barbell row", DisplayName: "Barbell Row", Category: "back"},
		{Provenance: models.ProvenanceGhost, RawID: "gone", DisplayName: "Zercher Squat", Category: "legs"},
	}
	added := mustAdd(t, c, refs...)
	for _, ex := range added {
		_ = c.UpdateField(ctx, ex.UIID, ex.Sets[0].LocalID, models.MetricReps, 8)
	}

	report, err := c.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Resolved != 3 || report.AutoSaved != 3 {
		t.Errorf("report = %+v, want 3 resolved and 3 auto-saved", report)
	}
	inv, _ := f.store.FetchInventory(ctx, "")
	if len(inv) != 3 {
		t.Errorf("inventory = %d items, want 3", len(inv))
	}
	for _, ex := range c.Session().Exercises {
		if ex.Ref.Provenance != models.ProvenanceReal {
			t.Errorf("%s still %s after finish", ex.Ref.DisplayName, ex.Ref.Provenance)
		}
	}
}

// TestFinishWriteFailureKeepsSessionActive verifies a failed write leaves the
// session active with its draft, and a second Finish saves each set once.
func TestFinishWriteFailureKeepsSessionActive(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	ex := mustAdd(t, c, models.RealRef(rec))[0]
	_ = c.UpdateField(ctx, ex.UIID, ex.Sets[0].LocalID, models.MetricWeight, 90)
	s2, _ := c.AddSet(ctx, ex.UIID)
	_ = c.UpdateField(ctx, ex.UIID, s2.LocalID, models.MetricWeight, 95)

	f.store.setFailLog(errors.New("connection reset"))
	report, err := c.Finish(ctx)
	var werr *TransientWriteError
	if !errors.As(err, &werr) {
		t.Fatalf("finish err = %v, want TransientWriteError", err)
	}
	if len(report.WriteErrors) != 2 {
		t.Errorf("write errors = %d, want 2", len(report.WriteErrors))
	}
	sid := c.Session().ID
	if got := c.Session().Status; got != models.StatusActive {
		t.Errorf("status = %v, want active", got)
	}
	if snap, _ := f.drafts.Load(ctx, sid); snap == nil {
		t.Error("draft missing after failed finish")
	}

	f.store.setFailLog(nil)
	report, err = c.Finish(ctx)
	if err != nil {
		t.Fatalf("retry finish: %v", err)
	}
	if report.AutoSaved != 2 {
		t.Errorf("auto-saved = %d, want 2", report.AutoSaved)
	}
	if n := len(f.logs(t, sid)); n != 2 {
		t.Errorf("logs = %d, want 2", n)
	}
}

// TestFinishSessionFailureIsRetryable verifies a failure closing the session
// row keeps the logged sets and does not log them again on retry.
func TestFinishSessionFailureIsRetryable(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	ex := mustAdd(t, c, models.RealRef(rec))[0]
	_ = c.UpdateField(ctx, ex.UIID, ex.Sets[0].LocalID, models.MetricWeight, 90)

	f.store.mu.Lock()
	f.store.failFinish = errors.New("deadline exceeded")
	f.store.mu.Unlock()
	if _, err := c.Finish(ctx); err == nil {
		t.Fatal("finish succeeded with a failing store")
	}
	if got := c.Session().Status; got != models.StatusActive {
		t.Fatalf("status = %v, want active", got)
	}

	f.store.mu.Lock()
	f.store.failFinish = nil
	f.store.mu.Unlock()
	report, err := c.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.AutoSaved != 0 {
		t.Errorf("auto-saved on retry = %d, want 0", report.AutoSaved)
	}
	if n := len(f.logs(t, report.SessionID)); n != 1 {
		t.Errorf("logs = %d, want 1", n)
	}
}

// TestFinishKeepsUnresolvedForRetry verifies a resolution failure does not
// block the rest of the session, and RetryUnresolved saves the leftovers.
func TestFinishKeepsUnresolvedForRetry(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	added := mustAdd(t, c, models.RealRef(rec), benchTemplate)
	for _, ex := range added {
		_ = c.UpdateField(ctx, ex.UIID, ex.Sets[0].LocalID, models.MetricWeight, 50)
	}

	f.store.setFailCreate(errors.New("catalog unavailable"))
	report, err := c.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Unresolved) != 1 || report.Unresolved[0].Name != "Bench Press" {
		t.Fatalf("unresolved = %+v, want bench press", report.Unresolved)
	}
	if report.AutoSaved != 1 {
		t.Errorf("auto-saved = %d, want 1", report.AutoSaved)
	}
	if got := c.Session().Status; got != models.StatusFinished {
		t.Errorf("status = %v, want finished", got)
	}
	if left := c.Unresolved(); len(left) != 1 {
		t.Fatalf("Unresolved() = %d exercises, want 1", len(left))
	}
	if snap, _ := f.drafts.Load(ctx, report.SessionID); snap == nil || len(snap.Exercises) != 1 {
		t.Errorf("retry draft = %+v, want the unresolved exercise", snap)
	}

	if _, err := c.RetryUnresolved(ctx); err != nil {
		t.Fatalf("retry with failing catalog returned error %v, want report only", err)
	}
	if len(c.Unresolved()) != 1 {
		t.Fatal("failed retry dropped the exercise")
	}

	f.store.setFailCreate(nil)
	retry, err := c.RetryUnresolved(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if retry.Resolved != 1 || retry.AutoSaved != 1 {
		t.Errorf("retry report = %+v", retry)
	}
	if n := len(f.logs(t, report.SessionID)); n != 2 {
		t.Errorf("logs = %d, want 2", n)
	}
	if snap, _ := f.drafts.Load(ctx, report.SessionID); snap != nil {
		t.Error("retry draft not cleared")
	}
	if _, err := c.RetryUnresolved(ctx); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("third retry err = %v, want ErrNothingToRetry", err)
	}
}

// TestFinishUpdatesDirtySets verifies edits to an unlocked, logged set are
// written through at finish instead of logged twice.
func TestFinishUpdatesDirtySets(t *testing.T) {
	f := newFixture()
	f.opts.AutoLock = false
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	ex := mustAdd(t, c, models.RealRef(rec))[0]
	id := ex.Sets[0].LocalID
	_ = c.UpdateField(ctx, ex.UIID, id, models.MetricWeight, 100)
	c.ToggleComplete(ctx, ex.UIID, id)
	c.Wait()
	_ = c.UpdateField(ctx, ex.UIID, id, models.MetricWeight, 102.5)

	report, err := c.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Updated != 1 || report.SetsLogged != 0 {
		t.Errorf("report = %+v, want one update", report)
	}
	logs := f.logs(t, report.SessionID)
	if len(logs) != 1 || logs[0].Weight != 102.5 {
		t.Errorf("logs = %+v, want one entry at 102.5", logs)
	}
}

// TestFinishStopsRestClock verifies no timer is left running after finish.
func TestFinishStopsRestClock(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	ex := mustAdd(t, c, models.RealRef(rec))[0]
	c.ToggleComplete(ctx, ex.UIID, ex.Sets[0].LocalID)
	c.Wait()
	s2, _ := c.AddSet(ctx, ex.UIID)
	c.ToggleComplete(ctx, ex.UIID, s2.LocalID)
	c.Wait()
	if _, live := c.LiveRest(); !live {
		t.Fatal("no live rest clock after completing a set")
	}
	report, err := c.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, live := c.LiveRest(); live {
		t.Error("rest clock still live after finish")
	}

	sets := c.Session().Exercises[0].Sets
	logs := f.logs(t, report.SessionID)
	if len(logs) != 2 {
		t.Fatalf("logged sets = %d, want 2", len(logs))
	}
	for i, l := range logs {
		if l.RestEndedAt == nil || !l.RestEndedAt.Equal(*sets[i].RestEndedAt) {
			t.Errorf("logged set %d rest end = %v, want %v", i+1, l.RestEndedAt, sets[i].RestEndedAt)
		}
		if sets[i].Dirty {
			t.Errorf("set %d still dirty after finish", i+1)
		}
	}
	if !logs[0].RestEndedAt.Equal(*logs[1].RestStartedAt) {
		t.Errorf("logged set 1 rest end = %v, want set 2 rest start %v", logs[0].RestEndedAt, logs[1].RestStartedAt)
	}
}

// TestFrozenRestReachesStoreBeforeFinish verifies completing the next set
// writes the previous set's rest end to its entry right away.
func TestFrozenRestReachesStoreBeforeFinish(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	ex := mustAdd(t, c, models.RealRef(rec))[0]
	c.ToggleComplete(ctx, ex.UIID, ex.Sets[0].LocalID)
	c.Wait()
	s2, _ := c.AddSet(ctx, ex.UIID)
	c.ToggleComplete(ctx, ex.UIID, s2.LocalID)
	c.Wait()

	if s := c.Session().Exercises[0].Sets[0]; s.Dirty {
		t.Errorf("set 1 still dirty after write-through: %+v", s)
	}
	logs := f.logs(t, c.Session().ID)
	if len(logs) != 2 || logs[0].RestEndedAt == nil {
		t.Fatalf("logs = %+v, want set 1 with a rest end", logs)
	}
	if !logs[0].RestEndedAt.Equal(*logs[1].RestStartedAt) {
		t.Errorf("logged set 1 rest end = %v, want %v", logs[0].RestEndedAt, logs[1].RestStartedAt)
	}
}

// TestCancelDiscardsInflightWrites verifies a write still in flight when the
// session is cancelled leaves nothing behind.
func TestCancelDiscardsInflightWrites(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	ex := mustAdd(t, c, models.RealRef(rec))[0]
	sid := c.Session().ID

	gate := make(chan struct{})
	f.store.mu.Lock()
	f.store.logGate = gate
	f.store.mu.Unlock()
	c.ToggleComplete(ctx, ex.UIID, ex.Sets[0].LocalID)
	for f.storeCalls() == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := c.Cancel(ctx); err != nil {
		t.Fatal(err)
	}
	close(gate)
	c.Wait()

	if got := c.Session(); got.Status != models.StatusCancelled || len(got.Exercises) != 0 {
		t.Errorf("session after cancel = %+v", got)
	}
	if _, err := f.store.GetSession(ctx, sid); err == nil {
		t.Error("cancelled session still in store")
	}
	if n := f.store.SetCount(); n != 0 {
		t.Errorf("logged sets after cancel = %d, want 0", n)
	}
	if snap, _ := f.drafts.Load(ctx, sid); snap != nil {
		t.Error("draft survived cancel")
	}
	if n := len(c.Notices()); n != 0 {
		t.Errorf("notices = %d, want none for a discarded session", n)
	}
}

// TestCancelRemovesLateLogEntry covers a cancel whose session delete fails:
// the row survives, so a write still in flight lands and must be removed.
func TestCancelRemovesLateLogEntry(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	rec := f.seedExercise(t, "Squat", "legs")
	mustOpen(t, c)
	ex := mustAdd(t, c, models.RealRef(rec))[0]
	sid := c.Session().ID

	gate := make(chan struct{})
	f.store.mu.Lock()
	f.store.logGate = gate
	f.store.failDelete = errors.New("connection reset")
	f.store.mu.Unlock()
	c.ToggleComplete(ctx, ex.UIID, ex.Sets[0].LocalID)
	for f.storeCalls() == 0 {
		time.Sleep(time.Millisecond)
	}

	var twe *TransientWriteError
	if err := c.Cancel(ctx); !errors.As(err, &twe) {
		t.Fatalf("cancel err = %v, want TransientWriteError", err)
	}
	close(gate)
	c.Wait()

	if _, err := f.store.GetSession(ctx, sid); err != nil {
		t.Fatalf("session row should survive the failed delete: %v", err)
	}
	logs, err := f.store.FetchSessionLogs(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 0 {
		t.Errorf("late log entries = %+v, want none", logs)
	}
	if n := f.store.SetCount(); n != 0 {
		t.Errorf("logged sets = %d, want 0", n)
	}
}

// TestRestartOpensFreshSession verifies restart discards the old session and
// the next exercise starts a new one.
func TestRestartOpensFreshSession(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	mustOpen(t, c)
	mustAdd(t, c, benchTemplate)
	old := c.Session().ID

	res, err := c.Restart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Prompt != PromptExercisePicker {
		t.Errorf("prompt = %q, want exercise picker", res.Prompt)
	}
	if s := c.Session(); s.ID != "" || s.Status != models.StatusActive || len(s.Exercises) != 0 {
		t.Errorf("session after restart = %+v", s)
	}

	mustAdd(t, c, benchTemplate)
	if id := c.Session().ID; id == "" || id == old {
		t.Errorf("new session id = %q, old %q", id, old)
	}
	if n := f.tracker.Count(progress.SessionStarted); n != 2 {
		t.Errorf("session_started notifications = %d, want 2", n)
	}
}

// TestCancelAfterFinishRejected verifies a finished session cannot be
// cancelled.
func TestCancelAfterFinishRejected(t *testing.T) {
	f := newFixture()
	c := f.controller()
	ctx := context.Background()
	mustOpen(t, c)
	mustAdd(t, c, benchTemplate)
	if _, err := c.Finish(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Cancel(ctx); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("cancel err = %v, want ErrSessionFinished", err)
	}
}
