package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	apperrors "github.com/swasthya/hms-backend/pkg/errors"
)

const (
	insertSessionQuery = `INSERT INTO chat_sessions (user_id, title) VALUES ($1, $2) RETURNING id, created_at, updated_at`

	selectSessionForUserQuery = `SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE id = $1 AND user_id = $2`

	selectLatestSessionQuery = `SELECT id, user_id, title, created_at, updated_at
		FROM chat_sessions WHERE user_id = $1
		ORDER BY updated_at DESC, id DESC LIMIT 1`

	listSessionsQuery = `SELECT s.id, s.title, s.created_at, s.updated_at, m.content AS first_message
		FROM chat_sessions s
		LEFT JOIN LATERAL (
			SELECT content FROM chat_messages
			WHERE session_id = s.id
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		) m ON TRUE
		WHERE s.user_id = $1
		ORDER BY s.updated_at DESC, s.id DESC`

	listMessagesQuery = `SELECT id, session_id, role, content, created_at
		FROM chat_messages WHERE session_id = $1
		ORDER BY created_at ASC, id ASC`

	insertMessageQuery = `INSERT INTO chat_messages (session_id, role, content) VALUES ($1, $2, $3) RETURNING id, created_at`

	touchSessionQuery = `UPDATE chat_sessions SET updated_at = NOW() WHERE id = $1`

	deleteSessionQuery = `DELETE FROM chat_sessions WHERE id = $1 AND user_id = $2`
)

// ChatSessionAdapter implements the ChatSessionRepository interface
type ChatSessionAdapter struct {
	db *sqlx.DB
}

// NewChatSessionAdapter creates a new chat session adapter
func NewChatSessionAdapter(db *sqlx.DB) repositories.ChatSessionRepository {
	return &ChatSessionAdapter{db: db}
}

// Create creates a new session for a user and fills in generated fields
func (a *ChatSessionAdapter) Create(ctx context.Context, session *entities.ChatSession) error {
	if session.Title == "" {
		session.Title = entities.DefaultSessionTitle
	}
	row := a.db.QueryRowxContext(ctx, insertSessionQuery, session.UserID, session.Title)
	if err := row.Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return apperrors.NewInternalError("failed to create chat session", err)
	}
	return nil
}

// GetForUser retrieves a session owned by userID
func (a *ChatSessionAdapter) GetForUser(ctx context.Context, id, userID int64) (*entities.ChatSession, error) {
	session := &entities.ChatSession{}
	err := a.db.GetContext(ctx, session, selectSessionForUserQuery, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("chat session %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get chat session", err)
	}
	return session, nil
}

// LatestForUser retrieves the most recently updated session of a user
func (a *ChatSessionAdapter) LatestForUser(ctx context.Context, userID int64) (*entities.ChatSession, error) {
	session := &entities.ChatSession{}
	err := a.db.GetContext(ctx, session, selectLatestSessionQuery, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("no chat sessions")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get latest chat session", err)
	}
	return session, nil
}

type sessionSummaryRow struct {
	ID           int64          `db:"id"`
	Title        string         `db:"title"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	UpdatedAt    sql.NullTime   `db:"updated_at"`
	FirstMessage sql.NullString `db:"first_message"`
}

// ListByUser lists sessions ordered by last update, newest first
func (a *ChatSessionAdapter) ListByUser(ctx context.Context, userID int64) ([]*entities.ChatSessionSummary, error) {
	var rows []sessionSummaryRow
	if err := a.db.SelectContext(ctx, &rows, listSessionsQuery, userID); err != nil {
		return nil, apperrors.NewInternalError("failed to list chat sessions", err)
	}

	summaries := make([]*entities.ChatSessionSummary, 0, len(rows))
	for _, r := range rows {
		var first *string
		if r.FirstMessage.Valid && r.FirstMessage.String != "" {
			first = &r.FirstMessage.String
		}
		summaries = append(summaries, &entities.ChatSessionSummary{
			ID:           r.ID,
			Title:        r.Title,
			CreatedAt:    r.CreatedAt.Time,
			UpdatedAt:    r.UpdatedAt.Time,
			FirstMessage: entities.SessionPreview(first),
		})
	}
	return summaries, nil
}

// ListMessages returns the transcript of a session in creation order
func (a *ChatSessionAdapter) ListMessages(ctx context.Context, sessionID int64) ([]*entities.ChatMessage, error) {
	messages := []*entities.ChatMessage{}
	if err := a.db.SelectContext(ctx, &messages, listMessagesQuery, sessionID); err != nil {
		return nil, apperrors.NewInternalError("failed to list chat messages", err)
	}
	return messages, nil
}

// AppendTurn stores the messages of one turn in a single transaction and bumps updated_at
func (a *ChatSessionAdapter) AppendTurn(ctx context.Context, sessionID int64, messages ...*entities.ChatMessage) (err error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, msg := range messages {
		msg.SessionID = sessionID
		row := tx.QueryRowxContext(ctx, insertMessageQuery, sessionID, msg.Role, msg.Content)
		if err = row.Scan(&msg.ID, &msg.CreatedAt); err != nil {
			return apperrors.NewInternalError("failed to insert chat message", err)
		}
	}

	if _, err = tx.ExecContext(ctx, touchSessionQuery, sessionID); err != nil {
		return apperrors.NewInternalError("failed to touch chat session", err)
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit chat turn", err)
	}
	return nil
}

// Delete removes a session owned by userID; messages cascade
func (a *ChatSessionAdapter) Delete(ctx context.Context, id, userID int64) error {
	result, err := a.db.ExecContext(ctx, deleteSessionQuery, id, userID)
	if err != nil {
		return apperrors.NewInternalError("failed to delete chat session", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("chat session %d not found", id))
	}
	return nil
}
