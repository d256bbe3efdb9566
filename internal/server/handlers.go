package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/claude/liftlog/internal/catalog"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/workout"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// sessionView is the session as returned to clients.
type sessionView struct {
	Session    models.Session           `json:"session"`
	LiveRest   *restView                `json:"live_rest,omitempty"`
	Pending    int                      `json:"pending_writes"`
	Notices    []noticeView             `json:"notices,omitempty"`
	Unresolved []models.WorkoutExercise `json:"unresolved,omitempty"`
}

type restView struct {
	ExerciseUIID string    `json:"exercise_ui_id"`
	LocalID      string    `json:"local_id"`
	StartedAt    time.Time `json:"started_at"`
	ElapsedSec   float64   `json:"elapsed_sec"`
}

type noticeView struct {
	At    time.Time `json:"at"`
	Error string    `json:"error"`
}

func (s *Server) controller(r *http.Request) *session.Controller {
	c := s.sessions.For(userIDFromContext(r))
	noteSession(r.Context(), c.SessionID())
	return c
}

func (s *Server) snapshot(r *http.Request, c *session.Controller) sessionView {
	v := sessionView{
		Session:    c.Session(),
		Pending:    c.Pending(),
		Unresolved: c.Unresolved(),
	}
	noteSession(r.Context(), v.Session.ID)
	if rc, ok := c.LiveRest(); ok {
		v.LiveRest = &restView{
			ExerciseUIID: rc.ExerciseUIID,
			LocalID:      rc.LocalID,
			StartedAt:    rc.StartedAt,
			ElapsedSec:   rc.Elapsed.Seconds(),
		}
	}
	for _, n := range c.Notices() {
		v.Notices = append(v.Notices, noticeView{At: n.At, Error: n.Err.Error()})
	}
	return v
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{Query: q.Get("q"), Category: q.Get("category")}
	refs, err := s.controller(r).Candidates(r.Context(), q.Get("context"), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if refs == nil {
		refs = []models.ExerciseReference{}
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot(r, s.controller(r)))
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GymContext string `json:"gym_context"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
	}
	c := s.controller(r)
	res, err := c.Open(r.Context(), req.GymContext)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"open":    res,
		"session": s.snapshot(r, c),
	})
}

func (s *Server) handleAddExercises(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Exercises []models.ExerciseReference `json:"exercises"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if len(req.Exercises) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exercises required"})
		return
	}
	added, err := s.controller(r).AddExercises(r.Context(), req.Exercises...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleLoadRoutine(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid routine ID"})
		return
	}
	res, err := s.controller(r).LoadRoutine(r.Context(), id.String())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position *int            `json:"position"`
		Metrics  map[string]bool `json:"metrics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	c := s.controller(r)
	uiID := chi.URLParam(r, "uiID")
	if req.Position != nil {
		if err := c.MoveExercise(r.Context(), uiID, *req.Position); err != nil {
			writeError(w, err)
			return
		}
	}
	for name, on := range req.Metrics {
		if err := c.SetMetric(r.Context(), uiID, name, on); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.snapshot(r, c))
}

func (s *Server) handleRemoveExercise(w http.ResponseWriter, r *http.Request) {
	if err := s.controller(r).RemoveExercise(r.Context(), chi.URLParam(r, "uiID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	set, err := s.controller(r).AddSet(r.Context(), chi.URLParam(r, "uiID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

// handleUpdateSet applies field edits, e.g. {"weight": 80, "reps": 5}.
func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	var fields map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	c := s.controller(r)
	uiID, localID := chi.URLParam(r, "uiID"), chi.URLParam(r, "localID")
	for name, v := range fields {
		if err := c.UpdateField(r.Context(), uiID, localID, name, v); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.snapshot(r, c))
}

func (s *Server) handleRemoveSet(w http.ResponseWriter, r *http.Request) {
	removed, err := s.controller(r).RemoveSet(r.Context(), chi.URLParam(r, "uiID"), chi.URLParam(r, "localID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exercise_removed": removed})
}

func (s *Server) handleToggleComplete(w http.ResponseWriter, r *http.Request) {
	t, err := s.controller(r).ToggleComplete(r.Context(), chi.URLParam(r, "uiID"), chi.URLParam(r, "localID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome":    t.Outcome.String(),
		"set":        t.Set,
		"set_number": t.SetNumber,
	})
}

func (s *Server) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	locked, err := s.controller(r).ToggleLock(r.Context(), chi.URLParam(r, "uiID"), chi.URLParam(r, "localID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"locked": locked})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	report, err := s.controller(r).Finish(r.Context())
	s.writeReport(w, r, report, err)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	report, err := s.controller(r).RetryUnresolved(r.Context())
	s.writeReport(w, r, report, err)
}

func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, report session.FinishReport, err error) {
	noteSession(r.Context(), report.SessionID)
	var werr *session.TransientWriteError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.As(err, &werr):
		s.log.Warn("finish incomplete", "session_id", report.SessionID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "report": report})
	default:
		writeError(w, err)
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.controller(r).Cancel(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	c := s.controller(r)
	res, err := c.Restart(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"open":    res,
		"session": s.snapshot(r, c),
	})
}

func (s *Server) handleSessionLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}
	noteSession(r.Context(), id.String())
	rec, err := s.store.GetSession(r.Context(), id.String())
	if err != nil || rec.UserID != userIDFromContext(r) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	logs, err := s.store.FetchSessionLogs(r.Context(), rec.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if logs == nil {
		logs = []models.ExerciseLogs{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": rec, "exercises": logs})
}

// writeError maps engine errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var werr *session.TransientWriteError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workout.ErrExerciseNotFound), errors.Is(err, workout.ErrSetNotFound),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workout.ErrUnknownField):
		status = http.StatusBadRequest
	case errors.Is(err, workout.ErrSetLocked), errors.Is(err, workout.ErrNotCompleted),
		errors.Is(err, session.ErrNoActiveSession), errors.Is(err, session.ErrSessionFinished),
		errors.Is(err, session.ErrFinishInProgress), errors.Is(err, session.ErrNothingToRetry):
		status = http.StatusConflict
	case errors.As(err, &werr):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
