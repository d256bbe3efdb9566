// Package session owns the lifecycle of one user's training session: lazy
// start, resume from a draft or from logged sets, routine-seeded start,
// background set logging, finish, cancel and restart.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/draft"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/progress"
	"github.com/claude/liftlog/internal/resolve"
	"github.com/claude/liftlog/internal/workout"
)

// Prompt tells the client which screen to show after Open.
type Prompt string

const (
	PromptWorkout        Prompt = "workout"
	PromptExercisePicker Prompt = "exercise_picker"
	PromptStartOptions   Prompt = "start_options"
)

// RestoreSource says where a resumed roster came from.
type RestoreSource string

const (
	RestoreNone  RestoreSource = ""
	RestoreDraft RestoreSource = "draft"
	RestoreLogs  RestoreSource = "logs"
)

// OpenResult is the outcome of entering the training screen.
type OpenResult struct {
	Prompt   Prompt                  `json:"prompt"`
	Restored RestoreSource           `json:"restored,omitempty"`
	Routines []models.RoutineSummary `json:"routines,omitempty"`
}

// Options configures a Controller.
type Options struct {
	Drafts  draft.Store
	Tracker progress.Tracker
	Clock   func() time.Time
	// AutoLock locks sets as they are completed.
	AutoLock         bool
	FallbackCategory string
	// FinishConcurrency bounds parallel resolutions during Finish.
	FinishConcurrency int
	Templates         []catalog.Template
}

// DefaultOptions returns options with an in-memory draft store, no tracker,
// auto-lock on and the standard templates.
func DefaultOptions() Options {
	return Options{
		Drafts:            draft.NewMemoryStore(),
		Tracker:           progress.Nop{},
		Clock:             time.Now,
		AutoLock:          true,
		FallbackCategory:  catalog.CategoryOther,
		FinishConcurrency: 4,
		Templates:         catalog.StandardTemplates,
	}
}

// Controller runs one user's session. It is safe for concurrent use; roster
// mutations are serialized and remote writes run in the background.
type Controller struct {
	store  Store
	userID int
	opts   Options
	log    *slog.Logger

	mu         sync.Mutex
	session    models.Session
	roster     *workout.Roster
	resolver   *resolve.Resolver
	generation uint64
	finishing  bool
	firstSet   bool
	lanes      map[string]*lane
	inflight   int
	notices    []Notice
	retry      *retryState

	pending sync.WaitGroup
}

// New creates a controller for one user. Zero-valued options fall back to
// DefaultOptions, except AutoLock which is taken as given.
func New(store Store, userID int, opts Options, log *slog.Logger) *Controller {
	def := DefaultOptions()
	if opts.Drafts == nil {
		opts.Drafts = def.Drafts
	}
	if opts.Tracker == nil {
		opts.Tracker = def.Tracker
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.FallbackCategory == "" {
		opts.FallbackCategory = def.FallbackCategory
	}
	if opts.FinishConcurrency < 1 {
		opts.FinishConcurrency = def.FinishConcurrency
	}
	if opts.Templates == nil {
		opts.Templates = def.Templates
	}
	c := &Controller{
		store:  store,
		userID: userID,
		opts:   opts,
		log:    log.With("user_id", userID),
		lanes:  map[string]*lane{},
	}
	c.roster = c.newRoster(nil)
	return c
}

func (c *Controller) newRoster(exercises []models.WorkoutExercise) *workout.Roster {
	opts := []workout.Option{workout.WithClock(c.opts.Clock), workout.WithAutoLock(c.opts.AutoLock)}
	if exercises == nil {
		return workout.New(opts...)
	}
	return workout.Restore(exercises, opts...)
}

func (c *Controller) newResolver(contextID string) *resolve.Resolver {
	return resolve.New(c.store, resolve.Scope{UserID: c.userID, ContextID: contextID}, c.opts.FallbackCategory, c.log)
}

// Open is called when the user enters the training screen. It resumes an
// open session if there is one, otherwise it prepares a new one without
// creating it in the store.
func (c *Controller) Open(ctx context.Context, gymContext string) (OpenResult, error) {
	c.mu.Lock()
	if c.session.Status == models.StatusActive && c.session.ID != "" {
		empty := c.roster.Len() == 0
		c.mu.Unlock()
		if empty {
			return OpenResult{Prompt: PromptExercisePicker}, nil
		}
		return OpenResult{Prompt: PromptWorkout}, nil
	}
	if c.finishing {
		c.mu.Unlock()
		return OpenResult{}, ErrFinishInProgress
	}
	c.mu.Unlock()

	rec, err := c.store.FindOpenSession(ctx, c.userID)
	if err != nil {
		return OpenResult{}, fmt.Errorf("finding open session: %w", err)
	}
	if rec != nil {
		return c.resume(ctx, *rec)
	}

	routines, err := c.store.ListRoutines(ctx, c.userID)
	if err != nil {
		return OpenResult{}, fmt.Errorf("listing routines: %w", err)
	}

	c.mu.Lock()
	c.resetLocked(models.Session{UserID: c.userID, GymContext: gymContext, Status: models.StatusNone})
	c.mu.Unlock()

	if len(routines) == 0 {
		return OpenResult{Prompt: PromptExercisePicker}, nil
	}
	return OpenResult{Prompt: PromptStartOptions, Routines: routines}, nil
}

// resume restores an open session from the draft or from its logged sets.
func (c *Controller) resume(ctx context.Context, rec models.SessionRecord) (OpenResult, error) {
	snap, err := c.opts.Drafts.Load(ctx, rec.ID)
	if err != nil {
		c.log.Warn("loading draft failed", "session_id", rec.ID, "error", err)
		snap = nil
	}
	logs, err := c.store.FetchSessionLogs(ctx, rec.ID)
	if err != nil {
		if snap == nil {
			return OpenResult{}, fmt.Errorf("fetching session logs: %w", err)
		}
		c.log.Warn("fetching session logs failed, using draft", "session_id", rec.ID, "error", err)
		logs = nil
	}

	source := chooseRestoreSource(snap, logs)
	var exercises []models.WorkoutExercise
	switch source {
	case RestoreDraft:
		exercises = snap.Exercises
	case RestoreLogs:
		exercises = exercisesFromLogs(logs, c.opts.AutoLock)
	}

	c.mu.Lock()
	c.resetLocked(models.Session{
		ID:         rec.ID,
		UserID:     c.userID,
		StartedAt:  rec.StartedAt,
		GymContext: rec.ContextID,
		Status:     models.StatusActive,
	})
	c.roster = c.newRoster(exercises)
	c.resolver = c.newResolver(rec.ContextID)
	c.firstSet = hasCompleted(exercises)
	empty := c.roster.Len() == 0
	if !empty {
		c.saveDraftLocked(ctx)
	}
	c.mu.Unlock()

	c.log.Info("session resumed", "session_id", rec.ID, "source", string(source), "exercises", len(exercises))
	if empty {
		// The session row exists but exercise selection was never completed.
		return OpenResult{Prompt: PromptExercisePicker}, nil
	}
	return OpenResult{Prompt: PromptWorkout, Restored: source}, nil
}

// chooseRestoreSource decides how to rebuild an open session. A draft wins
// because it holds edits the store never saw, unless a set was logged after
// the draft was saved, which means another device moved the session on.
func chooseRestoreSource(snap *draft.Snapshot, logs []models.ExerciseLogs) RestoreSource {
	var newest time.Time
	logged := 0
	for _, g := range logs {
		for _, s := range g.Sets {
			logged++
			if s.LoggedAt.After(newest) {
				newest = s.LoggedAt
			}
		}
	}
	if snap != nil && len(snap.Exercises) > 0 {
		if logged > 0 && newest.After(snap.SavedAt) {
			return RestoreLogs
		}
		return RestoreDraft
	}
	if logged > 0 {
		return RestoreLogs
	}
	return RestoreNone
}

// exercisesFromLogs rebuilds a roster from durably logged sets.
func exercisesFromLogs(logs []models.ExerciseLogs, autoLock bool) []models.WorkoutExercise {
	var out []models.WorkoutExercise
	for _, g := range logs {
		if len(g.Sets) == 0 {
			continue
		}
		ex := models.WorkoutExercise{
			Ref:              models.RealRef(g.Exercise),
			Metrics:          g.Exercise.Metrics.OrDefault(),
			CategorySnapshot: g.Sets[0].Category,
		}
		if ex.CategorySnapshot == "" {
			ex.CategorySnapshot = g.Exercise.Category
		}
		for _, l := range g.Sets {
			s := models.WorkoutSet{
				Weight:        l.Weight,
				Reps:          float64(l.Reps),
				Time:          l.Time,
				Distance:      l.Distance,
				RPE:           l.RPE,
				Completed:     l.Completed,
				Locked:        l.Completed && autoLock,
				RestStartedAt: l.RestStartedAt,
				RestEndedAt:   l.RestEndedAt,
				PersistedID:   l.ID,
			}
			if len(l.Custom) > 0 {
				s.Custom = make(map[string]float64, len(l.Custom))
				for k, v := range l.Custom {
					s.Custom[k] = v
				}
			}
			ex.Sets = append(ex.Sets, s)
		}
		out = append(out, ex)
	}
	return out
}

func hasCompleted(exercises []models.WorkoutExercise) bool {
	for _, ex := range exercises {
		for _, s := range ex.Sets {
			if s.Completed {
				return true
			}
		}
	}
	return false
}

// resetLocked replaces the in-memory session. Background writes of the old
// generation become no-ops when they complete.
func (c *Controller) resetLocked(s models.Session) {
	c.generation++
	c.session = s
	c.roster = c.newRoster(nil)
	c.resolver = nil
	c.firstSet = false
	c.lanes = map[string]*lane{}
}

// ensureStartedLocked creates the backing session row on first use.
func (c *Controller) ensureStartedLocked(ctx context.Context) error {
	switch c.session.Status {
	case models.StatusFinished:
		return ErrSessionFinished
	case models.StatusCancelled:
		return ErrNoActiveSession
	}
	if c.session.ID != "" {
		return nil
	}
	id, err := c.store.CreateSession(ctx, c.userID, c.session.GymContext)
	if err != nil {
		return &TransientWriteError{Op: "create session", Err: err}
	}
	c.session.ID = id
	c.session.UserID = c.userID
	c.session.StartedAt = c.opts.Clock()
	c.session.Status = models.StatusActive
	c.resolver = c.newResolver(c.session.GymContext)
	c.log.Info("session started", "session_id", id, "gym_context", c.session.GymContext)
	c.opts.Tracker.Notify(ctx, progress.Notification{Event: progress.SessionStarted, UserID: c.userID, SessionID: id})
	return nil
}

// activeLocked checks that roster mutations are allowed.
func (c *Controller) activeLocked() error {
	if c.finishing {
		return ErrFinishInProgress
	}
	switch c.session.Status {
	case models.StatusActive:
		return nil
	case models.StatusFinished:
		return ErrSessionFinished
	}
	return ErrNoActiveSession
}

// saveDraftLocked snapshots the roster. Failures are logged, never returned.
func (c *Controller) saveDraftLocked(ctx context.Context) {
	if c.session.ID == "" {
		return
	}
	snap := draftSnapshot(c.session.ID, c.userID, c.session.StartedAt, c.session.GymContext, c.roster.Exercises(), c.opts.Clock())
	if err := c.opts.Drafts.Save(ctx, snap); err != nil {
		c.log.Warn("saving draft failed", "session_id", c.session.ID, "error", err)
	}
}

func draftSnapshot(sessionID string, userID int, startedAt time.Time, gym string, exercises []models.WorkoutExercise, now time.Time) draft.Snapshot {
	return draft.Snapshot{
		SessionID:  sessionID,
		UserID:     userID,
		StartedAt:  startedAt,
		GymContext: gym,
		Exercises:  exercises,
		SavedAt:    now,
	}
}

func (c *Controller) noticeLocked(err error) {
	c.notices = append(c.notices, Notice{At: c.opts.Clock(), Err: err})
}

// Session returns a copy of the current session including its roster.
func (c *Controller) Session() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	s.Exercises = c.roster.Exercises()
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		s.FinishedAt = &t
	}
	return s
}

// SessionID returns the backing session id, empty before the session starts.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// LiveRest returns the running rest clock, if any.
func (c *Controller) LiveRest() (workout.RestClock, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster.LiveRest()
}

// Pending returns the number of background writes not yet settled.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Notices returns and clears failures reported by background writes.
func (c *Controller) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.notices
	c.notices = nil
	return n
}

// Candidates lists what can be added to the roster in a gym context. An empty
// contextID uses the session's context.
func (c *Controller) Candidates(ctx context.Context, contextID string, f catalog.Filter) ([]models.ExerciseReference, error) {
	if contextID == "" {
		c.mu.Lock()
		contextID = c.session.GymContext
		c.mu.Unlock()
	}
	inv, err := c.store.FetchInventory(ctx, contextID)
	if err != nil {
		return nil, fmt.Errorf("fetching inventory: %w", err)
	}
	return catalog.NewView(c.userID, inv, c.opts.Templates).ListCandidates(f), nil
}

// Wait blocks until background writes have settled.
func (c *Controller) Wait() {
	c.pending.Wait()
}
