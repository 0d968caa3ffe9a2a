package providers

import (
	"context"

	"github.com/swasthya/hms-backend/internal/domain/entities"
)

// ChatRequest is one round trip to the chat model
type ChatRequest struct {
	SystemInstruction string
	Contents          []entities.Content
	Tools             []entities.ToolDeclaration
}

// ChatProvider generates the next model turn for a conversation
type ChatProvider interface {
	GenerateContent(ctx context.Context, req *ChatRequest) (*entities.Content, error)
}
