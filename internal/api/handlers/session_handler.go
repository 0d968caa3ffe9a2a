package handlers

import (
	"context"
	"net/http"

	"github.com/swasthya/hms-backend/internal/domain/entities"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

// SessionService defines the session operations used by the handler.
type SessionService interface {
	List(ctx context.Context, userID int64) ([]*entities.ChatSessionSummary, error)
	Detail(ctx context.Context, id, userID int64) (*entities.ChatSession, error)
	Delete(ctx context.Context, id, userID int64) error
}

// SessionHandler exposes the caller's chat sessions.
type SessionHandler struct {
	service SessionService
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(service SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// ListSessions handles GET /api/ai/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	sessions, err := h.service.List(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*entities.ChatSessionSummary{}
	}
	respondWithJSON(w, http.StatusOK, sessions)
}

// GetSession handles GET /api/ai/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	session, err := h.service.Detail(r.Context(), id, userID)
	if apperrors.IsNotFound(err) {
		respondWithError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if session.Messages == nil {
		session.Messages = []*entities.ChatMessage{}
	}
	respondWithJSON(w, http.StatusOK, session)
}

// DeleteSession handles DELETE /api/ai/sessions/{id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := h.service.Delete(r.Context(), id, userID)
	if apperrors.IsNotFound(err) {
		respondWithError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
