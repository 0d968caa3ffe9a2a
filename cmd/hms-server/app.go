package main

import (
	"context"
	"fmt"
	"time"

	"github.com/swasthya/hms-backend/internal/adapters/cache"
	"github.com/swasthya/hms-backend/internal/adapters/database"
	"github.com/swasthya/hms-backend/internal/adapters/events"
	"github.com/swasthya/hms-backend/internal/api/handlers"
	"github.com/swasthya/hms-backend/internal/api/middleware"
	"github.com/swasthya/hms-backend/internal/api/routes"
	"github.com/swasthya/hms-backend/internal/application/services"
	"github.com/swasthya/hms-backend/internal/domain/providers"
	"github.com/swasthya/hms-backend/internal/domain/repositories"
	"github.com/swasthya/hms-backend/internal/infrastructure/clients/gemini"
	"github.com/swasthya/hms-backend/internal/infrastructure/clients/postgres"
	"github.com/swasthya/hms-backend/internal/infrastructure/clients/redis"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
	"github.com/swasthya/hms-backend/pkg/config"
)

const embeddingLockWait = 15 * time.Second

// app holds the wired dependencies shared by the commands
type app struct {
	pg       *postgres.Client
	redis    *redis.Client
	gemini   *gemini.Client
	eventBus providers.EventBus

	patients repositories.PatientRepository
	embedder *services.EmbeddingService
	cache    *services.EmbeddingCache

	audit  *services.ClinicalAuditService
	router *routes.Router
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := observability.GetLogger()

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}
	a := &app{pg: pgClient}
	logger.Info().Msg("PostgreSQL client initialized")

	var queryCache providers.CacheProvider
	var locks providers.LockProvider
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			// Redis only backs caching, locking and events; run without it
			logger.Warn().Err(err).Msg("Redis unavailable, continuing without it")
		} else {
			a.redis = redisClient
			queryCache = cache.NewRedisAdapter(redisClient)
			locks = cache.NewRedisLock(redisClient, embeddingLockWait)
			a.eventBus = events.NewRedisEventBus(redisClient)
			logger.Info().Msg("Redis client initialized")
		}
	}
	if locks == nil {
		locks = cache.NewLocalLock()
	}
	if a.eventBus == nil {
		a.eventBus = events.NewNoopEventBus()
	}

	// Interfaces stay untyped nil without credentials so services can detect it
	var embeddingProvider providers.EmbeddingProvider
	var chatProvider providers.ChatProvider
	if cfg.Gemini.HasCredentials() {
		client, err := gemini.NewClient(&cfg.Gemini)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		a.gemini = client
		embeddingProvider = client
		chatProvider = client
	} else {
		logger.Warn().Msg("GEMINI_API_KEY is not set; assistant replies and semantic search are disabled")
	}

	a.patients = database.NewPatientAdapter(pgClient)
	records := database.NewClinicalRecordAdapter(pgClient)
	appointments := database.NewAppointmentAdapter(pgClient)
	chatSessions := database.NewChatSessionAdapter(pgClient.DBx())

	a.embedder = services.NewEmbeddingService(embeddingProvider, queryCache, cfg.Agent.QueryCacheTTL)
	a.cache = services.NewEmbeddingCache(a.patients, records, a.embedder, locks, metrics)
	search := services.NewSemanticSearchService(a.patients, a.embedder, a.cache)

	registry := services.NewToolRegistry(metrics)
	tools := services.NewClinicalTools(a.patients, records, appointments, search, a.eventBus)
	if err := tools.Register(registry); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	sessions := services.NewChatSessionService(chatSessions)
	agent := services.NewAgentService(sessions, chatProvider, registry, cfg.Agent.MaxToolRounds, metrics)
	a.audit = services.NewClinicalAuditService(a.eventBus, *logger)

	a.router = routes.NewRouter(
		handlers.NewChatHandler(agent, sessions),
		handlers.NewSessionHandler(sessions),
		middleware.NewAuthenticator(cfg.Auth),
		cfg.Server.AllowedOrigins,
		metrics,
	)
	return a, nil
}

func (a *app) backfillService(workers int) *services.EmbeddingBackfillService {
	return services.NewEmbeddingBackfillService(a.patients, a.cache, a.embedder, workers)
}

// Close releases every client opened by newApp
func (a *app) Close() {
	logger := observability.GetLogger()
	if a.eventBus != nil {
		if err := a.eventBus.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close event bus")
		}
	}
	if a.gemini != nil {
		a.gemini.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close PostgreSQL client")
		}
	}
}
