package services

import (
	"context"

	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// SemanticMatch is one patient returned by a semantic search
type SemanticMatch struct {
	Patient *entities.Patient
	Score   float64
	Text    string
}

// SemanticSearchService finds the patients whose records best match a free-text query
type SemanticSearchService struct {
	patients repositories.PatientRepository
	embedder *EmbeddingService
	cache    *EmbeddingCache
}

// NewSemanticSearchService creates a new semantic search service
func NewSemanticSearchService(patients repositories.PatientRepository, embedder *EmbeddingService, cache *EmbeddingCache) *SemanticSearchService {
	return &SemanticSearchService{
		patients: patients,
		embedder: embedder,
		cache:    cache,
	}
}

// Search scores every patient in scope against query. A nil hospitalID searches
// all patients. An unusable query embedding yields no matches and no error.
func (s *SemanticSearchService) Search(ctx context.Context, query string, hospitalID *int64, limit int) ([]SemanticMatch, error) {
	ctx, span := observability.StartSpan(ctx, "semantic_search.search")
	defer span.End()

	queryVec := s.embedder.EmbedQuery(ctx, query)
	if len(queryVec) == 0 {
		return []SemanticMatch{}, nil
	}

	patients, err := s.patients.List(ctx, hospitalID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	candidates := make([]Candidate, 0, len(patients))
	for _, patient := range patients {
		vec, ok := s.cache.GetOrCreate(ctx, patient)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{Patient: patient, Vector: vec})
	}

	ranked := RankCandidates(queryVec, candidates, limit)
	observability.SetSpanAttributes(span,
		attribute.Int("search.scope_size", len(patients)),
		attribute.Int("search.matches", len(ranked)),
	)

	logger := observability.LoggerFromContext(ctx)
	matches := make([]SemanticMatch, 0, len(ranked))
	for _, r := range ranked {
		text, err := s.cache.ComposeText(ctx, r.Patient)
		if err != nil {
			logger.Warn().Err(err).Int64("patient_id", r.Patient.ID).Msg("Composing match text without notes")
			text = ComposePatientText(r.Patient, nil)
		}
		matches = append(matches, SemanticMatch{Patient: r.Patient, Score: r.Score, Text: text})
	}
	return matches, nil
}
