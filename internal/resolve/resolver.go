// Package resolve maps exercise references of any provenance onto a durable
// catalog id, creating or cloning backing records when needed.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/models"
	"golang.org/x/sync/singleflight"
)

// ErrNoName is returned for non-real references without a display name.
var ErrNoName = errors.New("reference has no display name")

// CatalogStore is the slice of the backing store the resolver needs.
type CatalogStore interface {
	FetchInventory(ctx context.Context, contextID string) ([]models.ExerciseRecord, error)
	CreateDurableExercise(ctx context.Context, p models.ExercisePayload) (models.ExerciseRecord, error)
	UpdateDurableExercise(ctx context.Context, id string, p models.ExercisePayload) error
}

// Scope is the user and gym context resolution runs in.
type Scope struct {
	UserID    int
	ContextID string
}

// Error reports that a reference could not be given a durable id.
type Error struct {
	Ref models.ExerciseReference
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolving %s exercise %q: %v", e.Ref.Provenance, e.Ref.DisplayName, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver resolves references for one session. Results are cached so the
// same template or ghost resolves to the same id for the session's lifetime.
//
// Check-then-create is not transactional: two devices resolving the same
// template at once can each create an item. That duplicate is accepted.
type Resolver struct {
	store            CatalogStore
	scope            Scope
	fallbackCategory string
	log              *slog.Logger

	group singleflight.Group

	mu        sync.Mutex
	resolved  map[string]string
	inventory []models.ExerciseRecord
	loaded    bool
}

// New creates a Resolver. fallbackCategory is used for the single retry after
// a rejected create.
func New(store CatalogStore, scope Scope, fallbackCategory string, log *slog.Logger) *Resolver {
	if fallbackCategory == "" {
		fallbackCategory = catalog.CategoryOther
	}
	return &Resolver{
		store:            store,
		scope:            scope,
		fallbackCategory: fallbackCategory,
		log:              log,
		resolved:         map[string]string{},
	}
}

// Scope returns the scope the resolver was built for.
func (r *Resolver) Scope() Scope {
	return r.scope
}

func cacheKey(ref models.ExerciseReference) string {
	return ref.Provenance.String() + ":" + catalog.Normalize(ref.DisplayName)
}

// Resolve returns a durable id for ref. Real references return their id
// without I/O.
func (r *Resolver) Resolve(ctx context.Context, ref models.ExerciseReference) (string, error) {
	if ref.Provenance == models.ProvenanceReal {
		if ref.RawID == "" {
			return "", &Error{Ref: ref, Err: errors.New("real reference without id")}
		}
		return ref.RawID, nil
	}
	if catalog.Normalize(ref.DisplayName) == "" {
		return "", &Error{Ref: ref, Err: ErrNoName}
	}

	key := cacheKey(ref)
	if id, ok := r.cached(key); ok {
		return id, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if id, ok := r.cached(key); ok {
			return id, nil
		}
		id, err := r.resolve(ctx, ref)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.resolved[key] = id
		r.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", &Error{Ref: ref, Err: err}
	}
	return v.(string), nil
}

func (r *Resolver) cached(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.resolved[key]
	return id, ok
}

func (r *Resolver) resolve(ctx context.Context, ref models.ExerciseReference) (string, error) {
	inv, err := r.loadInventory(ctx)
	if err != nil {
		return "", err
	}
	view := catalog.NewView(r.scope.UserID, inv, nil)

	switch ref.Provenance {
	case models.ProvenanceTemplate:
		if rec, ok := view.ByName(ref.DisplayName); ok {
			r.log.Debug("template matched existing item", "name", ref.DisplayName, "id", rec.ID)
			return rec.ID, nil
		}
	case models.ProvenanceGhost:
		if rec, ok := ownedByName(inv, r.scope.UserID, ref.DisplayName); ok {
			r.log.Info("ghost re-linked to owned item", "name", ref.DisplayName, "ghost_id", ref.RawID, "id", rec.ID)
			r.backfill(ctx, rec, ref)
			return rec.ID, nil
		}
	default:
		return "", fmt.Errorf("unsupported provenance %s", ref.Provenance)
	}

	rec, err := r.create(ctx, ref)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.inventory = append(r.inventory, rec)
	r.mu.Unlock()
	r.log.Info("created durable exercise", "provenance", ref.Provenance.String(), "name", rec.Name, "id", rec.ID)
	return rec.ID, nil
}

// backfill copies a ghost's category and icon onto the owned item it was
// re-linked to when the item lacks them. Failure only costs display metadata.
func (r *Resolver) backfill(ctx context.Context, rec models.ExerciseRecord, ref models.ExerciseReference) {
	if (rec.Category != "" || ref.Category == "") && (rec.Icon != "" || ref.Icon == "") {
		return
	}
	p := models.ExercisePayload{
		ContextID: rec.ContextID,
		OwnerID:   rec.OwnerID,
		Name:      rec.Name,
		Category:  rec.Category,
		Icon:      rec.Icon,
		Metrics:   rec.Metrics,
	}
	if p.Category == "" {
		p.Category = ref.Category
	}
	if p.Icon == "" {
		p.Icon = ref.Icon
	}
	if err := r.store.UpdateDurableExercise(ctx, rec.ID, p); err != nil {
		r.log.Warn("backfilling exercise metadata failed", "id", rec.ID, "error", err)
		return
	}

	r.mu.Lock()
	for i := range r.inventory {
		if r.inventory[i].ID == rec.ID {
			r.inventory[i].Category = p.Category
			r.inventory[i].Icon = p.Icon
		}
	}
	r.mu.Unlock()
}

func ownedByName(inv []models.ExerciseRecord, userID int, name string) (models.ExerciseRecord, bool) {
	key := catalog.Normalize(name)
	for _, rec := range inv {
		if rec.OwnerID == userID && catalog.Normalize(rec.Name) == key {
			return rec, true
		}
	}
	return models.ExerciseRecord{}, false
}

// create inserts a durable item, retrying once with the fallback category.
func (r *Resolver) create(ctx context.Context, ref models.ExerciseReference) (models.ExerciseRecord, error) {
	metrics := models.DefaultMetrics()
	if ref.Metrics != nil {
		metrics = ref.Metrics.OrDefault()
	}
	payload := models.ExercisePayload{
		ContextID: r.scope.ContextID,
		OwnerID:   r.scope.UserID,
		Name:      ref.DisplayName,
		Category:  ref.Category,
		Icon:      ref.Icon,
		Metrics:   metrics,
	}
	if payload.Category == "" {
		payload.Category = r.fallbackCategory
	}

	rec, err := r.store.CreateDurableExercise(ctx, payload)
	if err == nil {
		return rec, nil
	}
	if payload.Category == r.fallbackCategory {
		return models.ExerciseRecord{}, fmt.Errorf("creating exercise: %w", err)
	}

	r.log.Warn("exercise create rejected, retrying with fallback category",
		"name", payload.Name, "category", payload.Category, "fallback", r.fallbackCategory, "error", err)
	payload.Category = r.fallbackCategory
	rec, retryErr := r.store.CreateDurableExercise(ctx, payload)
	if retryErr != nil {
		return models.ExerciseRecord{}, fmt.Errorf("creating exercise with fallback category: %w", retryErr)
	}
	return rec, nil
}

func (r *Resolver) loadInventory(ctx context.Context) ([]models.ExerciseRecord, error) {
	r.mu.Lock()
	if r.loaded {
		inv := append([]models.ExerciseRecord(nil), r.inventory...)
		r.mu.Unlock()
		return inv, nil
	}
	r.mu.Unlock()

	inv, err := r.store.FetchInventory(ctx, r.scope.ContextID)
	if err != nil {
		return nil, fmt.Errorf("fetching inventory: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		r.inventory = append(r.inventory, inv...)
		r.loaded = true
	}
	return append([]models.ExerciseRecord(nil), r.inventory...), nil
}
