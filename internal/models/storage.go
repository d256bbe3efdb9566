package models

import "time"

// ExerciseRecord is a durable exercise/equipment item in the backing store.
type ExerciseRecord struct {
	ID        string    `json:"id"`
	ContextID string    `json:"context_id,omitempty"`
	OwnerID   int       `json:"owner_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Icon      string    `json:"icon,omitempty"`
	Metrics   MetricSet `json:"metrics"`
	CreatedAt time.Time `json:"created_at"`
}

// ExercisePayload is the body for creating or updating a durable exercise.
type ExercisePayload struct {
	ContextID string    `json:"context_id,omitempty"`
	OwnerID   int       `json:"owner_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Icon      string    `json:"icon,omitempty"`
	Metrics   MetricSet `json:"metrics"`
}

// RoutineSummary is a routine as listed for the start-options prompt.
type RoutineSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoutineDefinition is an ordered list of exercise references with per-exercise
// metric overrides.
type RoutineDefinition struct {
	ID        string            `json:"id"`
	OwnerID   int               `json:"owner_id"`
	Name      string            `json:"name"`
	Exercises []RoutineExercise `json:"exercises"`
}

// RoutineExercise is one entry of a routine. Name/Category/Icon are the
// display metadata cached when the routine was saved or imported.
type RoutineExercise struct {
	ExerciseID string     `json:"exercise_id,omitempty"`
	Name       string     `json:"name"`
	Category   string     `json:"category,omitempty"`
	Icon       string     `json:"icon,omitempty"`
	Metrics    *MetricSet `json:"metrics,omitempty"`
	TargetSets int        `json:"target_sets,omitempty"`
}

// SessionRecord is the backing-store row for a session.
type SessionRecord struct {
	ID         string     `json:"id"`
	UserID     int        `json:"user_id"`
	ContextID  string     `json:"context_id,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SetPayload is one logged set as transmitted to the store. Every entry is
// self-contained: it carries its own set number.
type SetPayload struct {
	SetNumber     int                `json:"set_number"`
	Weight        float64            `json:"weight"`
	Reps          int                `json:"reps"`
	Time          float64            `json:"time"`
	Distance      float64            `json:"distance"`
	RPE           float64            `json:"rpe"`
	Custom        map[string]float64 `json:"custom,omitempty"`
	Completed     bool               `json:"completed"`
	Category      string             `json:"category,omitempty"`
	RestStartedAt *time.Time         `json:"rest_started_at,omitempty"`
	RestEndedAt   *time.Time         `json:"rest_ended_at,omitempty"`
}

// LoggedSet is a durably logged set as read back from the store.
type LoggedSet struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	ExerciseID string    `json:"exercise_id"`
	LoggedAt   time.Time `json:"logged_at"`
	SetPayload
}

// ExerciseLogs groups the logged sets of one exercise, ordered by set number.
type ExerciseLogs struct {
	Exercise ExerciseRecord `json:"exercise"`
	Sets     []LoggedSet    `json:"sets"`
}
