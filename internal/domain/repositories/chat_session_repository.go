package repositories

import (
	"context"

	"github.com/swasthya/hms-backend/internal/domain/entities"
)

// ChatSessionRepository persists assistant conversations. Every lookup is
// scoped to the owning user; a session owned by someone else is not found.
type ChatSessionRepository interface {
	// Create creates a new session for a user
	Create(ctx context.Context, session *entities.ChatSession) error

	// GetForUser retrieves a session owned by userID
	GetForUser(ctx context.Context, id, userID int64) (*entities.ChatSession, error)

	// LatestForUser retrieves the most recently updated session of a user
	LatestForUser(ctx context.Context, userID int64) (*entities.ChatSession, error)

	// ListByUser lists sessions ordered by last update, newest first
	ListByUser(ctx context.Context, userID int64) ([]*entities.ChatSessionSummary, error)

	// ListMessages returns the transcript of a session in creation order
	ListMessages(ctx context.Context, sessionID int64) ([]*entities.ChatMessage, error)

	// AppendTurn stores the messages of one turn atomically and bumps updated_at
	AppendTurn(ctx context.Context, sessionID int64, messages ...*entities.ChatMessage) error

	// Delete removes a session owned by userID together with its messages
	Delete(ctx context.Context, id, userID int64) error
}
