package services

import (
	"context"
	"fmt"
	"time"

	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
)

const defaultEmbeddingLockTTL = time.Minute

// EmbeddingCache returns the stored embedding of a patient, computing and
// persisting it when missing or unreadable. Stored values are never checked for
// staleness: later record edits keep the old vector until it is cleared.
type EmbeddingCache struct {
	patients repositories.PatientRepository
	records  repositories.ClinicalRecordRepository
	embedder *EmbeddingService
	locks    providers.LockProvider
	lockTTL  time.Duration
	metrics  *observability.Metrics
}

// NewEmbeddingCache creates a new embedding cache. locks may be nil, in which
// case concurrent misses for one patient all call the provider.
func NewEmbeddingCache(
	patients repositories.PatientRepository,
	records repositories.ClinicalRecordRepository,
	embedder *EmbeddingService,
	locks providers.LockProvider,
	metrics *observability.Metrics,
) *EmbeddingCache {
	return &EmbeddingCache{
		patients: patients,
		records:  records,
		embedder: embedder,
		locks:    locks,
		lockTTL:  defaultEmbeddingLockTTL,
		metrics:  metrics,
	}
}

// GetOrCreate returns the patient's embedding and whether one is available
func (c *EmbeddingCache) GetOrCreate(ctx context.Context, patient *entities.Patient) ([]float64, bool) {
	if vec, err := patient.ParseEmbedding(); err == nil {
		observability.RecordEmbeddingCache(ctx, c.metrics, true)
		return vec, true
	}
	observability.RecordEmbeddingCache(ctx, c.metrics, false)

	if !c.embedder.Available() {
		return nil, false
	}

	logger := observability.LoggerFromContext(ctx).With().Int64("patient_id", patient.ID).Logger()

	if c.locks != nil {
		release, err := c.locks.Acquire(ctx, embeddingLockKey(patient.ID), c.lockTTL)
		if err != nil {
			logger.Warn().Err(err).Msg("Embedding lock not acquired, computing without it")
		} else {
			defer release()
			// Another worker may have filled the value while we waited.
			if vec, ok := c.reloadStored(ctx, patient); ok {
				return vec, true
			}
		}
	}

	text, err := c.ComposeText(ctx, patient)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to compose patient text")
		return nil, false
	}

	vec := c.embedder.EmbedDocument(ctx, text)
	if len(vec) == 0 {
		return nil, false
	}

	encoded, err := entities.EncodeEmbedding(vec)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode embedding")
		return vec, true
	}
	if err := c.patients.UpdateEmbedding(ctx, patient.ID, encoded); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist patient embedding")
	} else {
		patient.EmbeddingJSON = &encoded
	}
	return vec, true
}

// ComposeText renders the patient text from live record state
func (c *EmbeddingCache) ComposeText(ctx context.Context, patient *entities.Patient) (string, error) {
	notes, err := c.records.ListNotes(ctx, patient.ID, MaxComposedNotes)
	if err != nil {
		return "", fmt.Errorf("failed to load notes for patient %d: %w", patient.ID, err)
	}
	return ComposePatientText(patient, notes), nil
}

func (c *EmbeddingCache) reloadStored(ctx context.Context, patient *entities.Patient) ([]float64, bool) {
	stored, err := c.patients.GetEmbeddingJSON(ctx, patient.ID)
	if err != nil || stored == nil {
		return nil, false
	}
	fresh := &entities.Patient{EmbeddingJSON: stored}
	vec, err := fresh.ParseEmbedding()
	if err != nil {
		return nil, false
	}
	patient.EmbeddingJSON = stored
	return vec, true
}

func embeddingLockKey(patientID int64) string {
	return fmt.Sprintf("patient-embedding:%d", patientID)
}
