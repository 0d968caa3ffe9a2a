package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/swasthya/hms-backend/internal/application/services"
	"github.com/swasthya/hms-backend/internal/domain/entities"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

const maxChatMessageBytes = 16 << 10

// ChatAgent defines the assistant operations used by the handler.
type ChatAgent interface {
	Chat(ctx context.Context, req services.ChatRequest) (*services.ChatReply, error)
}

// ChatHistory defines the transcript lookup used by the handler.
type ChatHistory interface {
	LatestMessages(ctx context.Context, userID int64) ([]*entities.ChatMessage, error)
}

// ChatHandler handles assistant chat turns.
type ChatHandler struct {
	agent   ChatAgent
	history ChatHistory
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(agent ChatAgent, history ChatHistory) *ChatHandler {
	return &ChatHandler{agent: agent, history: history}
}

// hospital_id and session_id arrive as numbers or numeric strings depending on the client
type chatRequest struct {
	Message    string      `json:"message"`
	HospitalID interface{} `json:"hospital_id"`
	SessionID  interface{} `json:"session_id"`
}

// PostMessage handles POST /api/ai/chat
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var payload chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatMessageBytes)).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		respondWithError(w, http.StatusBadRequest, "Message is required")
		return
	}

	hospitalID, err := optionalID(payload.HospitalID, "hospital_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessionID, err := optionalID(payload.SessionID, "session_id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.agent.Chat(r.Context(), services.ChatRequest{
		UserID:     userID,
		Message:    payload.Message,
		SessionID:  sessionID,
		HospitalID: hospitalID,
	})
	if apperrors.IsNotFound(err) {
		respondWithError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, reply)
}

// LatestTranscript handles GET /api/ai/chat
func (h *ChatHandler) LatestTranscript(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	messages, err := h.history.LatestMessages(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, messages)
}

// optionalID reads an id that may be absent, null, zero or empty, all meaning "not given"
func optionalID(raw interface{}, field string) (*int64, error) {
	id, present, err := services.IntArg(map[string]interface{}{field: raw}, field)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", field)
	}
	if !present || id == 0 {
		return nil, nil
	}
	return &id, nil
}
