package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/swasthya/hms-backend/internal/infrastructure/clients/postgres"
	"github.com/swasthya/hms-backend/internal/infrastructure/observability"
	"github.com/swasthya/hms-backend/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hms-server",
		Short:         "Swasthya clinical assistant API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(backfillCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		observability.GetLogger().Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := observability.GetLogger()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	application, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.audit.Start(); err != nil {
		logger.Warn().Err(err).Msg("Clinical audit trail disabled")
	} else {
		defer application.audit.Stop()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           application.router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Chat turns can span several model calls
		WriteTimeout: time.Duration(cfg.Agent.MaxToolRounds+2) * cfg.Gemini.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info().Msg("Server exited")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			result, err := postgres.MigrateUp(cfg.Database.MigrationURL())
			if err != nil {
				return err
			}
			observability.GetLogger().Info().
				Uint("version", result.Version).
				Bool("changed", result.Changed).
				Msg("Migrations applied")
			return nil
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			result, err := postgres.MigrateDown(cfg.Database.MigrationURL(), steps)
			if err != nil {
				return err
			}
			observability.GetLogger().Info().
				Uint("version", result.Version).
				Bool("dirty", result.Dirty).
				Msg("Migrations rolled back")
			return nil
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migrations to roll back")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func backfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill-embeddings",
		Short: "Compute missing patient embeddings",
		RunE: func(cmd *cobra.Command, args []string) error {
			hospitalID, _ := cmd.Flags().GetInt64("hospital-id")
			patientID, _ := cmd.Flags().GetInt64("patient-id")
			workers, _ := cmd.Flags().GetInt("workers")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer application.Close()

			backfill := application.backfillService(workers)
			logger := observability.GetLogger()

			if patientID > 0 {
				if err := backfill.BackfillSingle(ctx, patientID); err != nil {
					return err
				}
				logger.Info().Int64("patient_id", patientID).Msg("Patient embedding stored")
				return nil
			}

			var scope *int64
			if hospitalID > 0 {
				scope = &hospitalID
			}
			start := time.Now()
			summary, err := backfill.BackfillAll(ctx, scope)
			if err != nil {
				return err
			}
			logger.Info().
				Int("processed", summary.TotalProcessed).
				Int("succeeded", summary.SuccessCount).
				Int("failed", summary.FailureCount).
				Dur("duration", time.Since(start)).
				Msg("Embedding backfill finished")
			return nil
		},
	}
	cmd.Flags().Int64("hospital-id", 0, "Only backfill patients of this hospital")
	cmd.Flags().Int64("patient-id", 0, "Backfill a single patient")
	cmd.Flags().Int("workers", 3, "Number of concurrent workers")
	return cmd
}
