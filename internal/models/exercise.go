package models

import (
	"encoding/json"
	"fmt"
)

// Provenance tags where an exercise reference came from.
type Provenance int

const (
	// ProvenanceReal references a durable catalog item.
	ProvenanceReal Provenance = iota
	// ProvenanceTemplate references a seed/suggestion with no durable id yet.
	ProvenanceTemplate
	// ProvenanceGhost references an item carried over from an imported routine
	// that does not resolve in the current catalog.
	ProvenanceGhost
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceReal:
		return "real"
	case ProvenanceTemplate:
		return "template"
	case ProvenanceGhost:
		return "ghost"
	default:
		return fmt.Sprintf("provenance(%d)", int(p))
	}
}

// ParseProvenance maps the wire name back to a Provenance.
func ParseProvenance(s string) (Provenance, error) {
	switch s {
	case "real":
		return ProvenanceReal, nil
	case "template":
		return ProvenanceTemplate, nil
	case "ghost":
		return ProvenanceGhost, nil
	}
	return 0, fmt.Errorf("unknown provenance %q", s)
}

func (p Provenance) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Provenance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseProvenance(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ExerciseReference is a provenance-tagged pointer to an exercise definition.
// Display metadata is always present so ghosts render like real items.
type ExerciseReference struct {
	Provenance  Provenance `json:"provenance"`
	RawID       string     `json:"raw_id"`
	DisplayName string     `json:"display_name"`
	Category    string     `json:"category"`
	Icon        string     `json:"icon,omitempty"`
	// Metrics is the catalog's metric configuration, if it has one.
	Metrics *MetricSet `json:"metrics,omitempty"`
}

// RealRef builds a reference to a durable catalog record.
func RealRef(rec ExerciseRecord) ExerciseReference {
	m := rec.Metrics
	return ExerciseReference{
		Provenance:  ProvenanceReal,
		RawID:       rec.ID,
		DisplayName: rec.Name,
		Category:    rec.Category,
		Icon:        rec.Icon,
		Metrics:     &m,
	}
}

// IsDurable reports whether the reference already carries a durable id.
func (r ExerciseReference) IsDurable() bool {
	return r.Provenance == ProvenanceReal && r.RawID != ""
}

// Resolved returns a copy re-tagged as Real with the given durable id.
// Display metadata is kept.
func (r ExerciseReference) Resolved(durableID string) ExerciseReference {
	r.Provenance = ProvenanceReal
	r.RawID = durableID
	return r
}

// Metric names for the built-in numeric fields.
const (
	MetricWeight   = "weight"
	MetricReps     = "reps"
	MetricTime     = "time"
	MetricDistance = "distance"
	MetricRPE      = "rpe"
)

// MetricSet is the enabled-metric configuration for one exercise instance.
type MetricSet struct {
	Weight   bool            `json:"weight"`
	Reps     bool            `json:"reps"`
	Time     bool            `json:"time"`
	Distance bool            `json:"distance"`
	RPE      bool            `json:"rpe"`
	Custom   map[string]bool `json:"custom,omitempty"`
}

// DefaultMetrics is weight+reps, used for templates and empty configurations.
func DefaultMetrics() MetricSet {
	return MetricSet{Weight: true, Reps: true}
}

// Enabled reports whether at least one metric is on.
func (m MetricSet) Enabled() bool {
	if m.Weight || m.Reps || m.Time || m.Distance || m.RPE {
		return true
	}
	for _, on := range m.Custom {
		if on {
			return true
		}
	}
	return false
}

// OrDefault returns m, or DefaultMetrics when nothing is enabled.
func (m MetricSet) OrDefault() MetricSet {
	if m.Enabled() {
		return m
	}
	return DefaultMetrics()
}

// Clone returns a deep copy.
func (m MetricSet) Clone() MetricSet {
	if m.Custom != nil {
		custom := make(map[string]bool, len(m.Custom))
		for k, v := range m.Custom {
			custom[k] = v
		}
		m.Custom = custom
	}
	return m
}

// With returns a copy with the named metric toggled to on. Unknown names are
// treated as custom metric ids.
func (m MetricSet) With(name string, on bool) MetricSet {
	m = m.Clone()
	switch name {
	case MetricWeight:
		m.Weight = on
	case MetricReps:
		m.Reps = on
	case MetricTime:
		m.Time = on
	case MetricDistance:
		m.Distance = on
	case MetricRPE:
		m.RPE = on
	default:
		if m.Custom == nil {
			m.Custom = map[string]bool{}
		}
		m.Custom[name] = on
	}
	return m
}
