// Package catalog projects the exercises a user can pick from: their own
// durable items, the shared catalog of the active context, and the standard
// templates, deduplicated by id and normalized name.
package catalog

import (
	"strings"

	"github.com/claude/liftlog/internal/models"
)

// Filter narrows ListCandidates. Zero value matches everything.
type Filter struct {
	Query    string
	Category string
}

func (f Filter) match(name, category string) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, category) {
		return false
	}
	if f.Query != "" && !strings.Contains(Normalize(name), Normalize(f.Query)) {
		return false
	}
	return true
}

// View is a read-only snapshot of what exercises exist for one user in one context.
type View struct {
	userID    int
	owned     []models.ExerciseRecord
	shared    []models.ExerciseRecord
	templates []Template
}

// NewView splits an inventory into the user's own items and the rest.
func NewView(userID int, inventory []models.ExerciseRecord, templates []Template) *View {
	v := &View{userID: userID, templates: templates}
	for _, rec := range inventory {
		if rec.OwnerID == userID {
			v.owned = append(v.owned, rec)
		} else {
			v.shared = append(v.shared, rec)
		}
	}
	return v
}

// ListCandidates merges owned items, then shared catalog items not already
// present by id or normalized name, then templates not already present by
// normalized name.
func (v *View) ListCandidates(f Filter) []models.ExerciseReference {
	seenID := map[string]bool{}
	seenName := map[string]bool{}
	var out []models.ExerciseReference

	addReal := func(rec models.ExerciseRecord) {
		key := Normalize(rec.Name)
		if seenID[rec.ID] || seenName[key] {
			return
		}
		seenID[rec.ID] = true
		seenName[key] = true
		if f.match(rec.Name, rec.Category) {
			out = append(out, models.RealRef(rec))
		}
	}

	for _, rec := range v.owned {
		addReal(rec)
	}
	for _, rec := range v.shared {
		addReal(rec)
	}
	for _, t := range v.templates {
		key := Normalize(t.Name)
		if seenName[key] {
			continue
		}
		seenName[key] = true
		if f.match(t.Name, t.Category) {
			out = append(out, TemplateRef(t))
		}
	}
	return out
}

// ByID finds a durable item by id.
func (v *View) ByID(id string) (models.ExerciseRecord, bool) {
	if id == "" {
		return models.ExerciseRecord{}, false
	}
	for _, rec := range v.owned {
		if rec.ID == id {
			return rec, true
		}
	}
	for _, rec := range v.shared {
		if rec.ID == id {
			return rec, true
		}
	}
	return models.ExerciseRecord{}, false
}

// ByName finds a durable item by normalized name, preferring owned items.
func (v *View) ByName(name string) (models.ExerciseRecord, bool) {
	key := Normalize(name)
	if key == "" {
		return models.ExerciseRecord{}, false
	}
	for _, rec := range v.owned {
		if Normalize(rec.Name) == key {
			return rec, true
		}
	}
	for _, rec := range v.shared {
		if Normalize(rec.Name) == key {
			return rec, true
		}
	}
	return models.ExerciseRecord{}, false
}

// TemplateByName finds a standard template by normalized name.
func (v *View) TemplateByName(name string) (Template, bool) {
	key := Normalize(name)
	if key == "" {
		return Template{}, false
	}
	for _, t := range v.templates {
		if Normalize(t.Name) == key {
			return t, true
		}
	}
	return Template{}, false
}

// TemplateRef builds a Template reference keyed by the normalized name.
func TemplateRef(t Template) models.ExerciseReference {
	return models.ExerciseReference{
		Provenance:  models.ProvenanceTemplate,
		RawID:       Normalize(t.Name),
		DisplayName: t.Name,
		Category:    t.Category,
		Icon:        t.Icon,
	}
}
