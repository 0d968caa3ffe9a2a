package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
)

// EmbeddingService wraps the embedding provider. Every failure is logged and
// reported as an empty vector so callers only branch on len(vec) == 0.
type EmbeddingService struct {
	provider providers.EmbeddingProvider
	cache    providers.CacheProvider
	queryTTL time.Duration
}

// NewEmbeddingService creates an embedding service. provider is nil when no
// credentials are configured; cache is optional and only used for queries.
func NewEmbeddingService(provider providers.EmbeddingProvider, cache providers.CacheProvider, queryTTL time.Duration) *EmbeddingService {
	return &EmbeddingService{
		provider: provider,
		cache:    cache,
		queryTTL: queryTTL,
	}
}

// Available reports whether an embedding provider is configured
func (s *EmbeddingService) Available() bool {
	return s.provider != nil
}

// EmbedDocument embeds stored patient text
func (s *EmbeddingService) EmbedDocument(ctx context.Context, text string) []float64 {
	return s.embed(ctx, text, entities.EmbeddingModeDocument)
}

// EmbedQuery embeds a search query, consulting the query cache first
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) []float64 {
	if !s.Available() || strings.TrimSpace(text) == "" {
		return s.embed(ctx, text, entities.EmbeddingModeQuery)
	}

	logger := observability.LoggerFromContext(ctx)
	key := s.queryCacheKey(text)
	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var vec []float64
			if jsonErr := json.Unmarshal(data, &vec); jsonErr == nil && len(vec) > 0 {
				return vec
			}
		case !errors.Is(err, providers.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Query embedding cache read failed")
		}
	}

	vec := s.embed(ctx, text, entities.EmbeddingModeQuery)
	if len(vec) > 0 && s.cache != nil {
		if data, err := json.Marshal(vec); err == nil {
			if err := s.cache.Set(ctx, key, data, int(s.queryTTL.Seconds())); err != nil {
				logger.Warn().Err(err).Msg("Query embedding cache write failed")
			}
		}
	}
	return vec
}

func (s *EmbeddingService) embed(ctx context.Context, text string, mode entities.EmbeddingMode) []float64 {
	logger := observability.LoggerFromContext(ctx)
	if !s.Available() {
		logger.Warn().Msg("No embedding API key configured, cannot generate embeddings")
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "embedding.embed")
	defer span.End()

	vec, err := s.provider.Embed(ctx, text, mode)
	if err != nil {
		observability.RecordError(span, err)
		logger.Error().Err(err).Str("mode", string(mode)).Msg("Error generating embedding")
		return nil
	}
	return vec
}

func (s *EmbeddingService) queryCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:query:" + s.provider.Model() + ":" + hex.EncodeToString(sum[:])
}
