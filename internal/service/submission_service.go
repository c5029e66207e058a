package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/studio-parallax/maquette-api/internal/dto"
	"github.com/studio-parallax/maquette-api/internal/middleware"
	"github.com/studio-parallax/maquette-api/internal/models"
	"github.com/studio-parallax/maquette-api/internal/observability"
	"github.com/studio-parallax/maquette-api/internal/repository"
)

var (
	// ErrStorageUnavailable means no repository is configured: either no
	// database URL was provided or the startup connection attempts were
	// exhausted. Submissions fail fast instead of retrying per request.
	ErrStorageUnavailable = errors.New("submission storage unavailable")
	// ErrDuplicateSubmission flags an identical answer arriving within the
	// dedupe window, usually a double-tap on the kiosk touchscreen.
	ErrDuplicateSubmission = errors.New("duplicate slider submission")
)

const sliderDedupeTTL = 10 * time.Second

// SubmissionService persists questionnaire slider answers.
type SubmissionService interface {
	Submit(ctx context.Context, input dto.SliderSubmissionInput) (dto.SliderSubmissionResponse, error)
	PersistenceEnabled() bool
}

type submissionService struct {
	repo      repository.SliderSubmissionRepository
	cache     *redis.Client
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	dedupeTTL time.Duration
	tracer    trace.Tracer
}

// NewSubmissionService constructs the service. Both repo and cache may be
// nil: a nil repo disables persistence entirely, a nil cache only disables
// the duplicate guard.
func NewSubmissionService(repo repository.SliderSubmissionRepository, cache *redis.Client, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		repo:      repo,
		cache:     cache,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "submission_service").Logger(),
		dedupeTTL: sliderDedupeTTL,
		tracer:    otel.Tracer("github.com/studio-parallax/maquette-api/internal/service/submission"),
	}
}

func (s *submissionService) PersistenceEnabled() bool {
	return s.repo != nil
}

func (s *submissionService) Submit(ctx context.Context, input dto.SliderSubmissionInput) (dto.SliderSubmissionResponse, error) {
	if s.repo == nil {
		return dto.SliderSubmissionResponse{}, ErrStorageUnavailable
	}

	ctx, span := s.tracer.Start(ctx, "slider.submit", trace.WithAttributes(
		attribute.String("slider.session_id", input.SessionID),
		attribute.String("slider.question_id", input.QuestionID),
	))
	defer span.End()

	if err := s.validator.Struct(input); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		observability.SliderSubmissions().WithLabelValues("rejected").Inc()
		return dto.SliderSubmissionResponse{}, fmt.Errorf("%w: %v", dto.ErrValidationFailed, err)
	}

	if err := s.ensureNotDuplicate(ctx, span, input); err != nil {
		return dto.SliderSubmissionResponse{}, err
	}

	submission := models.SliderSubmission{
		SessionID:    input.SessionID,
		QuestionID:   input.QuestionID,
		QuestionText: s.sanitizeLabel(input.QuestionText),
		Value:        input.Value,
	}
	if input.RecordedAt != nil {
		submission.RecordedAt = *input.RecordedAt
	}

	if err := s.repo.Save(ctx, &submission); err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrInvalidValue) {
			span.SetStatus(codes.Error, "invalid value")
			observability.SliderSubmissions().WithLabelValues("rejected").Inc()
			return dto.SliderSubmissionResponse{}, err
		}

		span.SetStatus(codes.Error, "persistence failed")
		observability.SliderSubmissions().WithLabelValues("failed").Inc()
		s.logger.Error().
			Err(err).
			Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
			Str("session_id", input.SessionID).
			Msg("slider submission insert failed")
		return dto.SliderSubmissionResponse{}, fmt.Errorf("persist slider submission: %w", err)
	}

	observability.SliderSubmissions().WithLabelValues("accepted").Inc()
	span.SetStatus(codes.Ok, "accepted")
	s.logger.Debug().
		Str("session_id", input.SessionID).
		Str("question_id", input.QuestionID).
		Uint("id", submission.ID).
		Msg("slider submission recorded")

	return dto.NewSliderSubmissionResponse(submission), nil
}

// ensureNotDuplicate uses a short-lived SetNX marker keyed by the answer
// checksum. The guard fails open: a cache outage must not block the kiosk.
func (s *submissionService) ensureNotDuplicate(ctx context.Context, span trace.Span, input dto.SliderSubmissionInput) error {
	if s.cache == nil {
		return nil
	}

	key := "maquette:slider:dedupe:" + submissionChecksum(input)

	ok, err := s.cache.SetNX(ctx, key, 1, s.dedupeTTL).Result()
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Msg("duplicate guard unavailable, accepting submission")
		return nil
	}

	if !ok {
		span.SetStatus(codes.Error, "duplicate submission")
		observability.SliderSubmissions().WithLabelValues("duplicate").Inc()
		return ErrDuplicateSubmission
	}

	return nil
}

func (s *submissionService) sanitizeLabel(label *string) *string {
	if label == nil {
		return nil
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(*label))
	if clean == "" {
		return nil
	}

	return &clean
}

func submissionChecksum(input dto.SliderSubmissionInput) string {
	hasher := sha256.New()
	for _, part := range []string{
		input.SessionID,
		input.QuestionID,
		strconv.FormatFloat(input.Value, 'g', -1, 64),
	} {
		hasher.Write([]byte(strings.ToLower(strings.TrimSpace(part))))
		hasher.Write([]byte("|"))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
