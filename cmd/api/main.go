package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/studio-parallax/maquette-api/internal/config"
	"github.com/studio-parallax/maquette-api/internal/database"
	"github.com/studio-parallax/maquette-api/internal/repository"
	"github.com/studio-parallax/maquette-api/internal/server"
	"github.com/studio-parallax/maquette-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db := openDatabase(cfg, logger)

	var submissionRepo repository.SliderSubmissionRepository
	if db != nil {
		submissionRepo = repository.NewSliderSubmissionRepository(db)
	}

	redisClient := connectCache(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	overrideService := service.NewOverrideService(logger)
	submissionService := service.NewSubmissionService(submissionRepo, redisClient, validate, logger)

	srv, err := server.New(cfg, logger, server.Options{
		Overrides:   overrideService,
		Submissions: submissionService,
		DB:          db,
	})
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	go func() {
		if err := srv.Listen(); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(srv, cfg, logger)
}

// openDatabase connects with bounded retries. Exhausted retries leave the
// server running without persistence; slider submissions answer 503 until a
// restart reaches the database again.
func openDatabase(cfg config.Config, logger zerolog.Logger) *gorm.DB {
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("no database url configured, slider persistence disabled")
		return nil
	}

	db, err := database.OpenWithRetry(func() (*gorm.DB, error) {
		return database.Open(cfg.DatabaseURL)
	}, cfg.ConnectAttempts, cfg.ConnectBaseDelay, logger)
	if err != nil {
		logger.Error().
			Err(err).
			Int("attempts", cfg.ConnectAttempts).
			Msg("database unreachable, slider persistence disabled")
		return nil
	}

	return db
}

// connectCache is best-effort: the duplicate guard simply switches off when
// redis is absent.
func connectCache(cfg config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	client, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, duplicate guard disabled")
		return nil
	}

	return client
}

func waitForShutdown(srv *server.Server, cfg config.Config, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	srv.Shutdown(ctx)
}
