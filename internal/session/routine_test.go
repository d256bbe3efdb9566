package session

import (
	"context"
	"testing"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/progress"
)

// TestLoadRoutineMatchesCatalog verifies each routine entry is matched by id,
// then name, then template, and the rest become ghosts or are dropped.
func TestLoadRoutineMatchesCatalog(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	squat := f.seedExercise(t, "Back Squat", "legs")
	curl := f.seedExercise(t, "Cable Curl", "arms")
	id, _ := f.store.SaveRoutine(ctx, models.RoutineDefinition{
		OwnerID: 7,
		Name:    "Full Body",
		Exercises: []models.RoutineExercise{
			{ExerciseID: squat.ID, Name: "renamed since", TargetSets: 3},
			{ExerciseID: "stale-id", Name: "cable curl"},
			{Name: "Bench Press"},
			{ExerciseID: "old", Name: "Zercher Squat", Category: "legs"},
			{ExerciseID: "orphan"},
		},
	})

	c := f.controller()
	if res := mustOpen(t, c); res.Prompt != PromptStartOptions {
		t.Fatalf("prompt = %q, want start options", res.Prompt)
	}
	load, err := c.LoadRoutine(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(load.Added) != 4 {
		t.Fatalf("added = %d, want 4", len(load.Added))
	}

	want := []struct {
		prov  models.Provenance
		rawID string
		name  string
	}{
		{models.ProvenanceReal, squat.ID, "Back Squat"},
		{models.ProvenanceReal, curl.ID, "Cable Curl"},
		{models.ProvenanceTemplate, "", "Bench Press"},
		{models.ProvenanceGhost, "old", "Zercher Squat"},
	}
	for i, w := range want {
		ref := load.Added[i].Ref
		if ref.Provenance != w.prov || ref.DisplayName != w.name {
			t.Errorf("entry %d = %s %q, want %s %q", i, ref.Provenance, ref.DisplayName, w.prov, w.name)
		}
		if w.rawID != "" && ref.RawID != w.rawID {
			t.Errorf("entry %d raw id = %q, want %q", i, ref.RawID, w.rawID)
		}
	}
	if n := len(load.Added[0].Sets); n != 3 {
		t.Errorf("target sets = %d, want 3", n)
	}
	if len(load.Ghosts) != 1 || load.Ghosts[0] != "Zercher Squat" {
		t.Errorf("ghosts = %v", load.Ghosts)
	}
	if load.Warning == nil || len(load.Warning.Dropped) != 1 {
		t.Errorf("warning = %+v, want one dropped entry", load.Warning)
	}
	if c.Session().ID == "" {
		t.Error("loading a routine did not start the session")
	}
	if n := f.tracker.Count(progress.RoutineImported); n != 1 {
		t.Errorf("routine_imported notifications = %d, want 1", n)
	}
}

// TestRoutineGhostClonedAtFinish is Scenario C: a ghost is trained like any
// exercise and turned into an owned item when the session finishes.
func TestRoutineGhostClonedAtFinish(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id, _ := f.store.SaveRoutine(ctx, models.RoutineDefinition{
		OwnerID:   7,
		Name:      "Legs",
		Exercises: []models.RoutineExercise{{ExerciseID: "deleted", Name: "Zercher Squat", Category: "legs", Icon: "barbell"}},
	})
	c := f.controller()
	mustOpen(t, c)
	load, err := c.LoadRoutine(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	ex := load.Added[0]
	_ = c.UpdateField(ctx, ex.UIID, ex.Sets[0].LocalID, models.MetricWeight, 60)
	_ = c.UpdateField(ctx, ex.UIID, ex.Sets[0].LocalID, models.MetricReps, 8)

	report, err := c.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Resolved != 1 || report.AutoSaved != 1 {
		t.Errorf("report = %+v", report)
	}
	inv, _ := f.store.FetchInventory(ctx, "")
	if len(inv) != 1 {
		t.Fatalf("inventory = %d items, want 1", len(inv))
	}
	item := inv[0]
	if item.Name != "Zercher Squat" || item.OwnerID != 7 || item.Category != "legs" || item.Icon != "barbell" {
		t.Errorf("cloned item = %+v", item)
	}
	logs := f.logs(t, report.SessionID)
	if len(logs) != 1 || logs[0].ExerciseID != item.ID {
		t.Errorf("logs = %+v, want one entry against %s", logs, item.ID)
	}
}

// TestRoutineGhostRelinksOwnedItem verifies a ghost whose name matches an
// owned item is logged against that item without creating a duplicate.
func TestRoutineGhostRelinksOwnedItem(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.controller()
	mustOpen(t, c)
	ghost := models.ExerciseReference{Provenance: models.ProvenanceGhost, RawID: "deleted", DisplayName: "Hack Squat", Category: "legs"}
	ex := mustAdd(t, c, ghost)[0]
	owned := f.seedExercise(t, "hack squat", "legs")

	c.ToggleComplete(ctx, ex.UIID, ex.Sets[0].LocalID)
	c.Wait()

	logs := f.logs(t, c.Session().ID)
	if len(logs) != 1 || logs[0].ExerciseID != owned.ID {
		t.Fatalf("logs = %+v, want one entry against %s", logs, owned.ID)
	}
	inv, _ := f.store.FetchInventory(ctx, "")
	if len(inv) != 1 {
		t.Errorf("inventory = %d items, want 1", len(inv))
	}
}

// TestMatchRoutineUsesTemplates checks template matching is by normalized
// name.
func TestMatchRoutineUsesTemplates(t *testing.T) {
	view := catalog.NewView(7, nil, catalog.StandardTemplates)
	entries, ghosts, dropped := matchRoutine(view, models.RoutineDefinition{
		Exercises: []models.RoutineExercise{{Name: "  bench   PRESS "}},
	})
	if len(entries) != 1 || entries[0].Ref.Provenance != models.ProvenanceTemplate {
		t.Fatalf("entries = %+v, want one template", entries)
	}
	if len(ghosts) != 0 || len(dropped) != 0 {
		t.Errorf("ghosts = %v, dropped = %v", ghosts, dropped)
	}
}
