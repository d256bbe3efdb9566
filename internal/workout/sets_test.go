package workout

import (
	"errors"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// TestCompleteSetsRestChain walks the bench press scenario: complete set 1,
// add set 2, complete set 2. Set 1's rest ends when set 2 completes and set 2's
// timer is the live one.
func TestCompleteSetsRestChain(t *testing.T) {
	r, clk := newTestRoster()
	ex := r.Add(benchTemplate)[0]
	s1 := ex.Sets[0].LocalID
	_ = r.UpdateField(ex.UIID, s1, models.MetricWeight, 60)
	_ = r.UpdateField(ex.UIID, s1, models.MetricReps, 10)

	t1 := clk.Now()
	tog, err := r.ToggleComplete(ex.UIID, s1)
	if err != nil {
		t.Fatal(err)
	}
	if tog.Outcome != Completed || tog.SetNumber != 1 {
		t.Fatalf("toggle = %+v", tog)
	}

	s2, _ := r.AddSet(ex.UIID)
	clk.Advance(2 * time.Minute)
	t2 := clk.Now()
	tog, err = r.ToggleComplete(ex.UIID, s2.LocalID)
	if err != nil {
		t.Fatal(err)
	}
	if tog.Frozen != s1 {
		t.Errorf("frozen = %q, want set 1", tog.Frozen)
	}

	got, _ := r.Exercise(ex.UIID)
	first, second := got.Sets[0], got.Sets[1]
	if first.RestStartedAt == nil || !first.RestStartedAt.Equal(t1) {
		t.Errorf("set 1 rest start = %v, want %v", first.RestStartedAt, t1)
	}
	if first.RestEndedAt == nil || !first.RestEndedAt.Equal(t2) {
		t.Errorf("set 1 rest end = %v, want %v", first.RestEndedAt, t2)
	}
	if second.RestStartedAt == nil || !second.RestStartedAt.Equal(*first.RestEndedAt) {
		t.Errorf("set 2 rest start = %v, want set 1 rest end", second.RestStartedAt)
	}
	if second.RestEndedAt != nil {
		t.Errorf("set 2 rest end = %v, want unset", second.RestEndedAt)
	}
}

// TestRestClockSpansExercises verifies one continuous rest clock across an
// exercise switch.
func TestRestClockSpansExercises(t *testing.T) {
	r, clk := newTestRoster()
	added := r.Add(benchTemplate, rowReal)
	bench, row := added[0], added[1]

	_, _ = r.ToggleComplete(bench.UIID, bench.Sets[0].LocalID)
	clk.Advance(90 * time.Second)
	tog, _ := r.ToggleComplete(row.UIID, row.Sets[0].LocalID)
	if tog.Frozen != bench.Sets[0].LocalID || tog.FrozenExercise != bench.UIID {
		t.Errorf("frozen = %q in %q, want bench set", tog.Frozen, tog.FrozenExercise)
	}

	clock, ok := r.LiveRest()
	if !ok || clock.ExerciseUIID != row.UIID {
		t.Errorf("live rest = %+v, want row set", clock)
	}
}

// TestCompletingEarlierSetStopsLaterTimer verifies the single live timer holds
// even when the user goes back and completes an earlier set.
func TestCompletingEarlierSetStopsLaterTimer(t *testing.T) {
	r, clk := newTestRoster()
	added := r.Add(benchTemplate, rowReal)
	bench, row := added[0], added[1]

	_, _ = r.ToggleComplete(row.UIID, row.Sets[0].LocalID)
	clk.Advance(time.Minute)
	_, _ = r.ToggleComplete(bench.UIID, bench.Sets[0].LocalID)

	rowNow, _ := r.Exercise(row.UIID)
	if rowNow.Sets[0].RestLive() {
		t.Error("later exercise timer still live")
	}
	clock, _ := r.LiveRest()
	if clock.LocalID != bench.Sets[0].LocalID {
		t.Errorf("live = %q, want bench set", clock.LocalID)
	}
}

// TestLockBlocksEdits covers the lock scenario: completion auto-locks, edits
// are rejected, unlocking allows the edit.
func TestLockBlocksEdits(t *testing.T) {
	r, _ := newTestRoster()
	ex := r.Add(benchTemplate)[0]
	id := ex.Sets[0].LocalID

	tog, _ := r.ToggleComplete(ex.UIID, id)
	if !tog.Set.Locked {
		t.Fatal("completion did not auto-lock")
	}
	if err := r.UpdateField(ex.UIID, id, models.MetricWeight, 100); !errors.Is(err, ErrSetLocked) {
		t.Fatalf("edit on locked set: err = %v, want ErrSetLocked", err)
	}

	locked, err := r.ToggleLock(ex.UIID, id)
	if err != nil || locked {
		t.Fatalf("unlock = %v, %v", locked, err)
	}
	if err := r.UpdateField(ex.UIID, id, models.MetricWeight, 100); err != nil {
		t.Fatalf("edit after unlock: %v", err)
	}
	s, _, _ := r.Set(ex.UIID, id)
	if s.Weight != 100 || !s.Completed {
		t.Errorf("set = %+v, want weight 100 and still completed", s)
	}
}

// TestToggleCompleteOnLockedIsNoop verifies a locked set cannot be un-marked.
func TestToggleCompleteOnLockedIsNoop(t *testing.T) {
	r, _ := newTestRoster()
	ex := r.Add(benchTemplate)[0]
	id := ex.Sets[0].LocalID
	_, _ = r.ToggleComplete(ex.UIID, id)
	before, _, _ := r.Set(ex.UIID, id)

	tog, err := r.ToggleComplete(ex.UIID, id)
	if err != nil {
		t.Fatal(err)
	}
	if tog.Outcome != Blocked {
		t.Errorf("outcome = %v, want blocked", tog.Outcome)
	}
	after, _, _ := r.Set(ex.UIID, id)
	if !after.Completed || !after.Locked || !after.RestStartedAt.Equal(*before.RestStartedAt) {
		t.Errorf("locked set changed: %+v", after)
	}
}

// TestLockRequiresCompletion verifies an incomplete set cannot be locked.
func TestLockRequiresCompletion(t *testing.T) {
	r, _ := newTestRoster()
	ex := r.Add(benchTemplate)[0]
	if _, err := r.ToggleLock(ex.UIID, ex.Sets[0].LocalID); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("err = %v, want ErrNotCompleted", err)
	}
}

// TestUncompleteClearsRest verifies un-marking clears the set's own timestamps,
// stops the live clock and drops its persisted id.
func TestUncompleteClearsRest(t *testing.T) {
	r := New(WithAutoLock(false))
	ex := r.Add(benchTemplate)[0]
	id := ex.Sets[0].LocalID
	_, _ = r.ToggleComplete(ex.UIID, id)
	r.MarkPersisted(ex.UIID, id, "log-9")

	tog, err := r.ToggleComplete(ex.UIID, id)
	if err != nil {
		t.Fatal(err)
	}
	if tog.Outcome != Uncompleted || tog.DroppedLogID != "log-9" {
		t.Errorf("toggle = %+v", tog)
	}
	if tog.Set.RestStartedAt != nil || tog.Set.RestEndedAt != nil || tog.Set.PersistedID != "" {
		t.Errorf("set after un-mark = %+v", tog.Set)
	}
	if _, ok := r.LiveRest(); ok {
		t.Error("rest clock still live after un-mark")
	}
}

// TestEditPersistedMarksDirty verifies edits after logging are tracked for write-through.
func TestEditPersistedMarksDirty(t *testing.T) {
	r := New(WithAutoLock(false))
	ex := r.Add(benchTemplate)[0]
	id := ex.Sets[0].LocalID
	_, _ = r.ToggleComplete(ex.UIID, id)
	r.MarkPersisted(ex.UIID, id, "log-1")
	_ = r.UpdateField(ex.UIID, id, models.MetricReps, 12)

	s, _, _ := r.Set(ex.UIID, id)
	if !s.Dirty {
		t.Error("edit on persisted set not marked dirty")
	}
	r.MarkPersisted(ex.UIID, id, "log-1")
	s, _, _ = r.Set(ex.UIID, id)
	if s.Dirty {
		t.Error("MarkPersisted did not clear dirty")
	}
}

// TestMarkPersistedAfterRemoval verifies a late write result for a removed set is ignored.
func TestMarkPersistedAfterRemoval(t *testing.T) {
	r := New(WithAutoLock(false))
	ex := r.Add(benchTemplate)[0]
	s2, _ := r.AddSet(ex.UIID)
	_, _, _ = r.RemoveSet(ex.UIID, s2.LocalID)
	if r.MarkPersisted(ex.UIID, s2.LocalID, "late") {
		t.Error("MarkPersisted succeeded for removed set")
	}
}

// TestStopRest verifies finishing freezes the live timer.
func TestStopRest(t *testing.T) {
	r, _ := newTestRoster()
	ex := r.Add(benchTemplate)[0]
	_, _ = r.ToggleComplete(ex.UIID, ex.Sets[0].LocalID)
	r.StopRest()
	if _, ok := r.LiveRest(); ok {
		t.Error("timer live after StopRest")
	}
}

// TestUnknownTargets verifies lookups fail with sentinel errors.
func TestUnknownTargets(t *testing.T) {
	r, _ := newTestRoster()
	ex := r.Add(benchTemplate)[0]
	if _, err := r.ToggleComplete("nope", "x"); !errors.Is(err, ErrExerciseNotFound) {
		t.Errorf("err = %v, want ErrExerciseNotFound", err)
	}
	if err := r.UpdateField(ex.UIID, "x", models.MetricWeight, 1); !errors.Is(err, ErrSetNotFound) {
		t.Errorf("err = %v, want ErrSetNotFound", err)
	}
	if err := r.UpdateField(ex.UIID, ex.Sets[0].LocalID, "", 1); !errors.Is(err, ErrUnknownField) {
		t.Errorf("err = %v, want ErrUnknownField", err)
	}
}

// TestMarkDirtyRequiresPersisted verifies only logged sets can be flagged dirty.
func TestMarkDirtyRequiresPersisted(t *testing.T) {
	r := New()
	ex := r.Add(benchTemplate)[0]
	id := ex.Sets[0].LocalID
	if r.MarkDirty(ex.UIID, id) {
		t.Error("MarkDirty succeeded on an unlogged set")
	}
	r.MarkPersisted(ex.UIID, id, "log-1")
	if !r.MarkDirty(ex.UIID, id) {
		t.Fatal("MarkDirty failed on a logged set")
	}
	if s, _, _ := r.Set(ex.UIID, id); !s.Dirty {
		t.Error("set not dirty")
	}
}

// TestFreezingLoggedSetMarksDirty verifies a logged set whose rest timer is
// stopped, by the next completion or by StopRest, is flagged for write-through.
func TestFreezingLoggedSetMarksDirty(t *testing.T) {
	r, clk := newTestRoster()
	ex := r.Add(benchTemplate)[0]
	s1 := ex.Sets[0].LocalID
	_, _ = r.ToggleComplete(ex.UIID, s1)
	r.MarkPersisted(ex.UIID, s1, "log-1")

	s2, _ := r.AddSet(ex.UIID)
	clk.Advance(time.Minute)
	tog, _ := r.ToggleComplete(ex.UIID, s2.LocalID)
	if tog.Frozen != s1 || tog.FrozenExercise != ex.UIID {
		t.Errorf("frozen = %q in %q, want set 1", tog.Frozen, tog.FrozenExercise)
	}
	if s, _, _ := r.Set(ex.UIID, s1); !s.Dirty || s.RestEndedAt == nil {
		t.Errorf("set 1 = %+v, want dirty with rest end", s)
	}

	r.MarkPersisted(ex.UIID, s2.LocalID, "log-2")
	clk.Advance(time.Minute)
	r.StopRest()
	s, _, _ := r.Set(ex.UIID, s2.LocalID)
	if !s.Dirty || s.RestEndedAt == nil || !s.RestEndedAt.Equal(clk.Now()) {
		t.Errorf("set 2 = %+v, want dirty with rest end %v", s, clk.Now())
	}
}

// TestFreezingUnloggedSetStaysClean verifies a set without a log entry is not
// flagged dirty when its timer stops; its first write carries the end time.
func TestFreezingUnloggedSetStaysClean(t *testing.T) {
	r, _ := newTestRoster()
	ex := r.Add(benchTemplate)[0]
	id := ex.Sets[0].LocalID
	_, _ = r.ToggleComplete(ex.UIID, id)
	r.StopRest()
	if s, _, _ := r.Set(ex.UIID, id); s.Dirty || s.RestEndedAt == nil {
		t.Errorf("set = %+v, want clean with rest end", s)
	}
}
