package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/studio-parallax/maquette-api/internal/models"
)

// retrySleep is swapped out by tests.
var retrySleep = time.Sleep

// ConnectFunc performs one storage connection attempt.
type ConnectFunc func() (*gorm.DB, error)

// Open connects to PostgreSQL and ensures the submissions schema exists.
// Table and index creation both use if-not-exists semantics, so repeated
// startups against the same database are safe.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(&models.SliderSubmission{}); err != nil {
		return nil, fmt.Errorf("failed to ensure submissions schema: %w", err)
	}

	return db, nil
}

// OpenWithRetry calls connect up to attempts times, sleeping baseDelay
// multiplied by the attempt number between failures. It returns the last
// error once every attempt has failed; the caller then runs without
// persistence rather than aborting startup.
func OpenWithRetry(connect ConnectFunc, attempts int, baseDelay time.Duration, log zerolog.Logger) (*gorm.DB, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := connect()
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("storage connected after retry")
			}
			return db, nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("storage connection failed")

		if attempt < attempts {
			retrySleep(time.Duration(attempt) * baseDelay)
		}
	}

	return nil, lastErr
}

// Close releases the underlying connection pool. Failures are logged and
// swallowed; this runs during shutdown where nothing can act on them.
func Close(db *gorm.DB, log zerolog.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn().Err(err).Msg("storage close skipped")
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn().Err(err).Msg("storage close failed")
	}
}
