package providers

import (
	"context"

	"github.com/swasthya/hms-backend/internal/domain/entities"
)

// EmbeddingProvider turns text into a dense vector
type EmbeddingProvider interface {
	// Embed returns the embedding of text for the given task mode
	Embed(ctx context.Context, text string, mode entities.EmbeddingMode) ([]float64, error)

	// Model names the embedding model, used to namespace cached vectors
	Model() string
}
