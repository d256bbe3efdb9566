package session

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/progress"
	"github.com/claude/liftlog/internal/workout"
)

// RoutineLoad is the result of a routine-seeded start.
type RoutineLoad struct {
	RoutineID string                   `json:"routine_id"`
	Added     []models.WorkoutExercise `json:"added"`
	// Ghosts names the entries that did not match the current catalog and
	// were added as ghosts.
	Ghosts []string `json:"ghosts,omitempty"`
	// Warning lists entries that could not be added at all.
	Warning *DataIntegrityWarning `json:"warning,omitempty"`
}

// LoadRoutine seeds the roster from a routine. Entries are matched against
// the current catalog by durable id, then normalized name, then template
// name; anything else becomes a ghost so it can still be trained.
func (c *Controller) LoadRoutine(ctx context.Context, routineID string) (RoutineLoad, error) {
	def, err := c.store.FetchRoutine(ctx, routineID)
	if err != nil {
		return RoutineLoad{}, fmt.Errorf("fetching routine: %w", err)
	}

	c.mu.Lock()
	contextID := c.session.GymContext
	c.mu.Unlock()

	inv, err := c.store.FetchInventory(ctx, contextID)
	if err != nil {
		return RoutineLoad{}, fmt.Errorf("fetching inventory: %w", err)
	}
	view := catalog.NewView(c.userID, inv, c.opts.Templates)

	res := RoutineLoad{RoutineID: routineID}
	entries, ghosts, dropped := matchRoutine(view, def)
	res.Ghosts = ghosts
	if len(dropped) > 0 {
		res.Warning = &DataIntegrityWarning{RoutineID: routineID, Dropped: dropped}
		c.log.Warn("routine entries could not be matched", "routine_id", routineID, "dropped", len(dropped))
	}
	if len(entries) == 0 {
		return res, nil
	}

	added, err := c.addEntries(ctx, entries)
	if err != nil {
		return RoutineLoad{}, err
	}
	res.Added = added

	c.mu.Lock()
	sessionID := c.session.ID
	c.mu.Unlock()
	c.opts.Tracker.Notify(ctx, progress.Notification{
		Event: progress.RoutineImported, UserID: c.userID, SessionID: sessionID, Detail: routineID,
	})
	c.log.Info("routine loaded", "routine_id", routineID, "exercises", len(added), "ghosts", len(ghosts))
	return res, nil
}

// matchRoutine turns routine entries into roster entries. It returns the
// names of entries that became ghosts and a description of entries dropped
// for lack of any name to show.
func matchRoutine(view *catalog.View, def models.RoutineDefinition) (entries []workout.Entry, ghosts, dropped []string) {
	for i, e := range def.Exercises {
		entry := workout.Entry{Metrics: e.Metrics, Sets: e.TargetSets}
		if rec, ok := view.ByID(e.ExerciseID); ok {
			entry.Ref = models.RealRef(rec)
		} else if rec, ok := view.ByName(e.Name); ok {
			entry.Ref = models.RealRef(rec)
		} else if t, ok := view.TemplateByName(e.Name); ok {
			entry.Ref = catalog.TemplateRef(t)
		} else if catalog.Normalize(e.Name) != "" {
			entry.Ref = models.ExerciseReference{
				Provenance:  models.ProvenanceGhost,
				RawID:       e.ExerciseID,
				DisplayName: e.Name,
				Category:    e.Category,
				Icon:        e.Icon,
				Metrics:     e.Metrics,
			}
			ghosts = append(ghosts, e.Name)
		} else {
			label := e.ExerciseID
			if label == "" {
				label = "(unnamed)"
			}
			dropped = append(dropped, fmt.Sprintf("#%d %s", i+1, label))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, ghosts, dropped
}
