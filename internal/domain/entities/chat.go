package entities

import (
	"time"
	"unicode/utf8"
)

// ChatRole is the author of a persisted chat message
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

const (
	// SessionTitleMaxRunes bounds the title derived from the first message
	SessionTitleMaxRunes = 30
	// SessionPreviewMaxRunes bounds the first-message preview in session lists
	SessionPreviewMaxRunes = 50
	// DefaultSessionTitle is used before a title is derived
	DefaultSessionTitle = "New Chat"
)

// ChatSession is a conversation thread owned by one user
type ChatSession struct {
	ID        int64          `json:"id" db:"id"`
	UserID    int64          `json:"user" db:"user_id"`
	Title     string         `json:"title" db:"title"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
	Messages  []*ChatMessage `json:"messages" db:"-"`
}

// ChatSessionSummary is the lightweight list projection of a session
type ChatSessionSummary struct {
	ID           int64     `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	FirstMessage string    `json:"first_message" db:"-"`
}

// ChatMessage is an immutable entry in a session transcript
type ChatMessage struct {
	ID        int64     `json:"id" db:"id"`
	SessionID int64     `json:"-" db:"session_id"`
	Role      ChatRole  `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`
}

// SessionTitleFromMessage derives a session title from the first user message
func SessionTitleFromMessage(message string) string {
	return truncateRunes(message, SessionTitleMaxRunes)
}

// SessionPreview renders the first-message preview shown in session lists
func SessionPreview(firstMessage *string) string {
	if firstMessage == nil {
		return DefaultSessionTitle
	}
	return truncateRunes(*firstMessage, SessionPreviewMaxRunes)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}
