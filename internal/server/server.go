package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/go-chi/chi/v5"
)

// Store is what the HTTP layer needs beyond the session engine: user lookup
// for identity and session reads for the logs endpoint.
type Store interface {
	session.Store
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	GetSession(ctx context.Context, sessionID string) (models.SessionRecord, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    Store
	sessions *session.Manager
	log      *slog.Logger
	apiKey   string
	router   chi.Router

	mu       sync.RWMutex
	identity func(http.Handler) http.Handler
}

// New creates a new Server with all routes configured. Requests are
// attributed to the local dev user until SetDevUser or SetTailscale is called.
func New(store Store, sessions *session.Manager, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:    store,
		sessions: sessions,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
		identity: DevIdentity(1, UserInfo{Login: "local", DisplayName: "Local Dev User"}),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetDevUser attributes every request to one user. Used without tailscale.
func (s *Server) SetDevUser(userID int, info UserInfo) {
	s.mu.Lock()
	s.identity = DevIdentity(userID, info)
	s.mu.Unlock()
}

// SetTailscale switches identity to the tailnet peer making each request.
func (s *Server) SetTailscale(lc WhoIsClient) {
	s.mu.Lock()
	s.identity = TailscaleIdentity(lc, s.store, s.log)
	s.mu.Unlock()
}

func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		mw := s.identity
		s.mu.RUnlock()
		mw(next).ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identify)

		r.Get("/me", s.handleMe)
		r.Get("/catalog", s.handleCatalog)
		r.Get("/session", s.handleSession)
		r.Get("/sessions/{id}/logs", s.handleSessionLogs)

		// Anything that changes a session needs the API key.
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/session/open", s.handleOpen)
			r.Post("/session/exercises", s.handleAddExercises)
			r.Post("/session/routine/{id}", s.handleLoadRoutine)
			r.Patch("/session/exercises/{uiID}", s.handleUpdateExercise)
			r.Delete("/session/exercises/{uiID}", s.handleRemoveExercise)
			r.Post("/session/exercises/{uiID}/sets", s.handleAddSet)
			r.Patch("/session/exercises/{uiID}/sets/{localID}", s.handleUpdateSet)
			r.Delete("/session/exercises/{uiID}/sets/{localID}", s.handleRemoveSet)
			r.Post("/session/exercises/{uiID}/sets/{localID}/complete", s.handleToggleComplete)
			r.Post("/session/exercises/{uiID}/sets/{localID}/lock", s.handleToggleLock)
			r.Post("/session/finish", s.handleFinish)
			r.Post("/session/cancel", s.handleCancel)
			r.Post("/session/restart", s.handleRestart)
			r.Post("/session/retry", s.handleRetry)
		})
	})
}
