// Package progress receives onboarding/progress notifications from the
// session engine. The engine only reports transitions; what a tracker does
// with them (tutorial steps, badges) is outside the engine.
package progress

import (
	"context"
	"log/slog"
	"sync"
)

// Event names a transition the engine reports.
type Event string

const (
	SessionStarted    Event = "session_started"
	FirstSetCompleted Event = "first_set_completed"
	RoutineImported   Event = "routine_imported"
	SessionFinished   Event = "session_finished"
)

// Notification is one reported transition.
type Notification struct {
	Event     Event
	UserID    int
	SessionID string
	// Detail carries event-specific data, e.g. the routine id.
	Detail string
}

// Tracker is notified on engine transitions. Implementations must not block
// for long; the engine calls Notify inline.
type Tracker interface {
	Notify(ctx context.Context, n Notification)
}

// LogTracker writes notifications to a structured logger.
type LogTracker struct {
	log *slog.Logger
}

// NewLogTracker creates a tracker that logs every notification.
func NewLogTracker(log *slog.Logger) *LogTracker {
	return &LogTracker{log: log}
}

func (t *LogTracker) Notify(ctx context.Context, n Notification) {
	t.log.InfoContext(ctx, "progress", "event", string(n.Event), "user_id", n.UserID, "session_id", n.SessionID, "detail", n.Detail)
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Notification
}

func (r *Recorder) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	r.events = append(r.events, n)
	r.mu.Unlock()
}

// Events returns a copy of the recorded notifications.
func (r *Recorder) Events() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.events...)
}

// Count returns how many notifications of one event were recorded.
func (r *Recorder) Count(e Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Event == e {
			n++
		}
	}
	return n
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}
