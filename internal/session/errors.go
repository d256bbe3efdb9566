package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNoActiveSession  = errors.New("no active session")
	ErrSessionFinished  = errors.New("session already finished")
	ErrFinishInProgress = errors.New("finish in progress")
	ErrNothingToRetry   = errors.New("no unresolved exercises to retry")
)

// ResolutionError reports that one exercise could not be given a durable id.
// It blocks only that exercise's sets from being logged.
type ResolutionError struct {
	ExerciseUIID string `json:"exercise_ui_id"`
	Name         string `json:"name"`
	Err          error  `json:"-"`
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("exercise %q could not be saved: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TransientWriteError reports a failed log, update or finish write. The data
// stays in the roster and the draft until a later write succeeds.
type TransientWriteError struct {
	Op           string `json:"op"`
	ExerciseUIID string `json:"exercise_ui_id,omitempty"`
	LocalID      string `json:"local_id,omitempty"`
	Err          error  `json:"-"`
}

func (e *TransientWriteError) Error() string {
	if e.LocalID != "" {
		return fmt.Sprintf("%s set %s: %v", e.Op, e.LocalID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientWriteError) Unwrap() error { return e.Err }

// DataIntegrityWarning lists routine entries that could not be matched to
// anything, not even as a ghost. The session proceeds without them.
type DataIntegrityWarning struct {
	RoutineID string   `json:"routine_id"`
	Dropped   []string `json:"dropped"`
}

func (w *DataIntegrityWarning) Error() string {
	return fmt.Sprintf("routine %s: %d entries could not be matched: %s",
		w.RoutineID, len(w.Dropped), strings.Join(w.Dropped, ", "))
}

// Notice is a non-blocking failure from background work, kept for the UI.
type Notice struct {
	At  time.Time
	Err error
}
