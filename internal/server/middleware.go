package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// APIKeyAuth returns middleware that validates the X-API-Key header on
// session-changing routes.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing API key"})
				return
			}
			if key != apiKey {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid API key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// logFields collects who and which session a request touched. Identity
// middleware and handlers fill it in; RequestLogging reads it once the
// handler returns.
type logFields struct {
	mu        sync.Mutex
	userID    int
	sessionID string
}

func fieldsFromContext(ctx context.Context) *logFields {
	f, _ := ctx.Value(logFieldsKey).(*logFields)
	return f
}

// noteUser records the user a request was attributed to.
func noteUser(ctx context.Context, userID int) {
	if f := fieldsFromContext(ctx); f != nil {
		f.mu.Lock()
		f.userID = userID
		f.mu.Unlock()
	}
}

// noteSession records the training session a request read or changed.
func noteSession(ctx context.Context, sessionID string) {
	if f := fieldsFromContext(ctx); f != nil && sessionID != "" {
		f.mu.Lock()
		f.sessionID = sessionID
		f.mu.Unlock()
	}
}

// RequestLogging returns middleware that logs each request with the user and
// session it was served for.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fields := &logFields{}
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), logFieldsKey, fields)))

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			}
			fields.mu.Lock()
			if fields.userID != 0 {
				attrs = append(attrs, "user_id", fields.userID)
			}
			if fields.sessionID != "" {
				attrs = append(attrs, "session_id", fields.sessionID)
			}
			fields.mu.Unlock()

			if sw.status >= http.StatusInternalServerError {
				log.Warn("request", attrs...)
				return
			}
			log.Info("request", attrs...)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
