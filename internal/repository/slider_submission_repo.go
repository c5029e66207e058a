package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/studio-parallax/maquette-api/internal/models"
)

// ErrInvalidValue rejects submissions whose value is NaN or infinite. String
// coercion at the edge can produce those; the store never should.
var ErrInvalidValue = errors.New("slider value must be a finite number")

// SliderSubmissionRepository appends questionnaire answers to durable storage.
type SliderSubmissionRepository interface {
	Save(ctx context.Context, submission *models.SliderSubmission) error
}

type sliderSubmissionRepository struct {
	db *gorm.DB
}

// NewSliderSubmissionRepository instantiates the repository.
func NewSliderSubmissionRepository(db *gorm.DB) SliderSubmissionRepository {
	return &sliderSubmissionRepository{db: db}
}

func (r *sliderSubmissionRepository) Save(ctx context.Context, submission *models.SliderSubmission) error {
	if math.IsNaN(submission.Value) || math.IsInf(submission.Value, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidValue, submission.Value)
	}

	if submission.RecordedAt.IsZero() {
		submission.RecordedAt = time.Now().UTC()
	}

	return r.db.WithContext(ctx).Create(submission).Error
}
