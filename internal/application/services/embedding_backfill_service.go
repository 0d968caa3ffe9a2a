package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/swasthya/hms-backend/internal/domain/repositories"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
)

// BackfillBatchSize is the page size used when listing patients to backfill
const BackfillBatchSize = 100

var errEmbeddingUnavailable = errors.New("embedding not produced")

// BackfillSummary reports the outcome of a backfill run
type BackfillSummary struct {
	TotalProcessed int
	SuccessCount   int
	FailureCount   int
}

// EmbeddingBackfillService precomputes missing patient embeddings so that the
// first semantic search over a hospital does not pay for every patient.
type EmbeddingBackfillService struct {
	patients    repositories.PatientRepository
	cache       *EmbeddingCache
	embedder    *EmbeddingService
	workerCount int
}

// NewEmbeddingBackfillService creates a new backfill service
func NewEmbeddingBackfillService(
	patients repositories.PatientRepository,
	cache *EmbeddingCache,
	embedder *EmbeddingService,
	workers int,
) *EmbeddingBackfillService {
	if workers <= 0 {
		workers = 1
	}
	return &EmbeddingBackfillService{
		patients:    patients,
		cache:       cache,
		embedder:    embedder,
		workerCount: workers,
	}
}

// BackfillAll computes embeddings for every patient in scope that lacks one.
// A nil hospitalID covers all patients.
func (s *EmbeddingBackfillService) BackfillAll(ctx context.Context, hospitalID *int64) (*BackfillSummary, error) {
	if !s.embedder.Available() {
		return nil, errors.New("embedding provider is not configured")
	}

	logger := observability.LoggerFromContext(ctx)
	var processed, success, failure int64

	idChan := make(chan int64, BackfillBatchSize)
	var wg sync.WaitGroup

	for i := 0; i < s.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range idChan {
				err := s.BackfillSingle(ctx, id)
				atomic.AddInt64(&processed, 1)
				if err != nil {
					atomic.AddInt64(&failure, 1)
					logger.Warn().Err(err).Int64("patient_id", id).Msg("Failed to backfill patient embedding")
				} else {
					atomic.AddInt64(&success, 1)
				}
			}
		}()
	}

	// Paging by id cursor keeps failed patients from being listed again.
	var afterID int64
	var produceErr error
produce:
	for {
		ids, err := s.patients.ListIDsMissingEmbedding(ctx, hospitalID, afterID, BackfillBatchSize)
		if err != nil {
			produceErr = fmt.Errorf("failed to list patients missing embeddings: %w", err)
			break
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			select {
			case idChan <- id:
			case <-ctx.Done():
				produceErr = ctx.Err()
				break produce
			}
		}

		afterID = ids[len(ids)-1]
		if len(ids) < BackfillBatchSize {
			break
		}
	}

	close(idChan)
	wg.Wait()

	if produceErr != nil {
		return nil, produceErr
	}

	return &BackfillSummary{
		TotalProcessed: int(processed),
		SuccessCount:   int(success),
		FailureCount:   int(failure),
	}, nil
}

// BackfillSingle computes and stores the embedding of one patient
func (s *EmbeddingBackfillService) BackfillSingle(ctx context.Context, patientID int64) error {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return fmt.Errorf("failed to get patient %d: %w", patientID, err)
	}
	if _, ok := s.cache.GetOrCreate(ctx, patient); !ok {
		return fmt.Errorf("patient %d: %w", patientID, errEmbeddingUnavailable)
	}
	return nil
}
