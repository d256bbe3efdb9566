package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkoutSet is one performed set.
type WorkoutSet struct {
	LocalID  string             `json:"local_id"`
	Weight   float64            `json:"weight"`
	Reps     float64            `json:"reps"`
	Time     float64            `json:"time"`
	Distance float64            `json:"distance"`
	RPE      float64            `json:"rpe"`
	Custom   map[string]float64 `json:"custom,omitempty"`

	Completed bool `json:"completed"`
	Locked    bool `json:"locked"`

	RestStartedAt *time.Time `json:"rest_started_at,omitempty"`
	RestEndedAt   *time.Time `json:"rest_ended_at,omitempty"`

	PersistedID string `json:"persisted_id,omitempty"`
	// Dirty marks a persisted set edited after its last durable write.
	Dirty bool `json:"dirty,omitempty"`
}

// HasValues reports whether any numeric field was entered.
func (s WorkoutSet) HasValues() bool {
	if s.Weight > 0 || s.Reps > 0 || s.Time > 0 || s.Distance > 0 || s.RPE > 0 {
		return true
	}
	for _, v := range s.Custom {
		if v > 0 {
			return true
		}
	}
	return false
}

// RestLive reports whether this set holds the running rest clock.
func (s WorkoutSet) RestLive() bool {
	return s.RestStartedAt != nil && s.RestEndedAt == nil
}

// Field returns the value of a named metric.
func (s WorkoutSet) Field(name string) float64 {
	switch name {
	case MetricWeight:
		return s.Weight
	case MetricReps:
		return s.Reps
	case MetricTime:
		return s.Time
	case MetricDistance:
		return s.Distance
	case MetricRPE:
		return s.RPE
	}
	return s.Custom[name]
}

// SetField assigns a named metric. Unknown names go to Custom.
func (s *WorkoutSet) SetField(name string, v float64) {
	switch name {
	case MetricWeight:
		s.Weight = v
	case MetricReps:
		s.Reps = v
	case MetricTime:
		s.Time = v
	case MetricDistance:
		s.Distance = v
	case MetricRPE:
		s.RPE = v
	default:
		if s.Custom == nil {
			s.Custom = map[string]float64{}
		}
		s.Custom[name] = v
	}
}

// Clone returns a deep copy.
func (s WorkoutSet) Clone() WorkoutSet {
	if s.Custom != nil {
		custom := make(map[string]float64, len(s.Custom))
		for k, v := range s.Custom {
			custom[k] = v
		}
		s.Custom = custom
	}
	if s.RestStartedAt != nil {
		t := *s.RestStartedAt
		s.RestStartedAt = &t
	}
	if s.RestEndedAt != nil {
		t := *s.RestEndedAt
		s.RestEndedAt = &t
	}
	return s
}

// WorkoutExercise is one exercise instance inside a session.
type WorkoutExercise struct {
	UIID             string            `json:"ui_id"`
	Ref              ExerciseReference `json:"exercise_ref"`
	Metrics          MetricSet         `json:"metrics"`
	Sets             []WorkoutSet      `json:"sets"`
	CategorySnapshot string            `json:"category_snapshot"`
}

// Clone returns a deep copy.
func (e WorkoutExercise) Clone() WorkoutExercise {
	e.Metrics = e.Metrics.Clone()
	if e.Ref.Metrics != nil {
		m := e.Ref.Metrics.Clone()
		e.Ref.Metrics = &m
	}
	sets := make([]WorkoutSet, len(e.Sets))
	for i, s := range e.Sets {
		sets[i] = s.Clone()
	}
	e.Sets = sets
	return e
}

// CloneExercises deep-copies a roster.
func CloneExercises(in []WorkoutExercise) []WorkoutExercise {
	if in == nil {
		return nil
	}
	out := make([]WorkoutExercise, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus int

const (
	StatusNone SessionStatus = iota
	StatusActive
	StatusFinished
	StatusCancelled
)

func (s SessionStatus) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusActive:
		return "active"
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s SessionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "none":
		*s = StatusNone
	case "active":
		*s = StatusActive
	case "finished":
		*s = StatusFinished
	case "cancelled":
		*s = StatusCancelled
	default:
		return fmt.Errorf("unknown session status %q", name)
	}
	return nil
}

// Session is the aggregate root of one training session.
type Session struct {
	// ID is empty until the backing store row is created.
	ID         string            `json:"id,omitempty"`
	UserID     int               `json:"user_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	GymContext string            `json:"gym_context,omitempty"`
	Exercises  []WorkoutExercise `json:"exercises"`
	Status     SessionStatus     `json:"status"`
}
