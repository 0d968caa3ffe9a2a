package repositories

import (
	"context"

	"github.com/swasthya/hms-backend/internal/domain/entities"
)

// PatientRepository defines the interface for patient data operations
type PatientRepository interface {
	// GetByID retrieves a patient by ID
	GetByID(ctx context.Context, id int64) (*entities.Patient, error)

	// List retrieves every patient in scope. A nil hospitalID means all patients.
	List(ctx context.Context, hospitalID *int64) ([]*entities.Patient, error)

	// SearchByName matches first or last name case-insensitively
	SearchByName(ctx context.Context, nameQuery string, hospitalID *int64, limit int) ([]*entities.Patient, error)

	// UpdateMedicalHistory overwrites the medical history field only
	UpdateMedicalHistory(ctx context.Context, id int64, history string) error

	// GetEmbeddingJSON re-reads the stored embedding of a patient
	GetEmbeddingJSON(ctx context.Context, id int64) (*string, error)

	// UpdateEmbedding writes the embedding field only
	UpdateEmbedding(ctx context.Context, id int64, embeddingJSON string) error

	// ListIDsMissingEmbedding pages through patients without a stored embedding
	ListIDsMissingEmbedding(ctx context.Context, hospitalID *int64, afterID int64, limit int) ([]int64, error)
}
