package routes

import (
	"net/http"

	"github.com/swasthya/hms-backend/internal/api/handlers"
	"github.com/swasthya/hms-backend/internal/api/middleware"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	chatHandler    *handlers.ChatHandler
	sessionHandler *handlers.SessionHandler

	auth           *middleware.Authenticator
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	chatHandler *handlers.ChatHandler,
	sessionHandler *handlers.SessionHandler,
	auth *middleware.Authenticator,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		chatHandler:    chatHandler,
		sessionHandler: sessionHandler,
		auth:           auth,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

func (r *Router) protected(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, r.auth.Require(h))
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Assistant endpoints
	r.protected("POST /api/ai/chat", r.chatHandler.PostMessage)
	r.protected("GET /api/ai/chat", r.chatHandler.LatestTranscript)

	// Session endpoints
	r.protected("GET /api/ai/sessions", r.sessionHandler.ListSessions)
	r.protected("GET /api/ai/sessions/{id}", r.sessionHandler.GetSession)
	r.protected("DELETE /api/ai/sessions/{id}", r.sessionHandler.DeleteSession)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.RecoveryMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	// CORS wraps everything so preflights never reach auth
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
