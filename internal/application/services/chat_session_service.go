package services

import (
	"context"

	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

// ChatSessionService manages assistant conversations on behalf of their owner
type ChatSessionService struct {
	repo repositories.ChatSessionRepository
}

// NewChatSessionService creates a new chat session service
func NewChatSessionService(repo repositories.ChatSessionRepository) *ChatSessionService {
	return &ChatSessionService{repo: repo}
}

// Start creates a session titled after its first message
func (s *ChatSessionService) Start(ctx context.Context, userID int64, firstMessage string) (*entities.ChatSession, error) {
	session := &entities.ChatSession{
		UserID: userID,
		Title:  entities.SessionTitleFromMessage(firstMessage),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns a session owned by userID without its transcript
func (s *ChatSessionService) Get(ctx context.Context, id, userID int64) (*entities.ChatSession, error) {
	return s.repo.GetForUser(ctx, id, userID)
}

// Detail returns a session owned by userID with its ordered transcript
func (s *ChatSessionService) Detail(ctx context.Context, id, userID int64) (*entities.ChatSession, error) {
	session, err := s.repo.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	session.Messages = messages
	return session, nil
}

// List returns the user's sessions, most recently updated first
func (s *ChatSessionService) List(ctx context.Context, userID int64) ([]*entities.ChatSessionSummary, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Messages returns the transcript of a session
func (s *ChatSessionService) Messages(ctx context.Context, sessionID int64) ([]*entities.ChatMessage, error) {
	return s.repo.ListMessages(ctx, sessionID)
}

// LatestMessages returns the transcript of the user's most recently updated
// session, or an empty list when the user has none.
func (s *ChatSessionService) LatestMessages(ctx context.Context, userID int64) ([]*entities.ChatMessage, error) {
	session, err := s.repo.LatestForUser(ctx, userID)
	if apperrors.IsNotFound(err) {
		return []*entities.ChatMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, session.ID)
}

// AppendTurn persists a user message and the assistant reply together
func (s *ChatSessionService) AppendTurn(ctx context.Context, sessionID int64, userText, assistantText string) error {
	return s.repo.AppendTurn(ctx, sessionID,
		&entities.ChatMessage{Role: entities.ChatRoleUser, Content: userText},
		&entities.ChatMessage{Role: entities.ChatRoleAssistant, Content: assistantText},
	)
}

// Delete removes a session owned by userID
func (s *ChatSessionService) Delete(ctx context.Context, id, userID int64) error {
	return s.repo.Delete(ctx, id, userID)
}
