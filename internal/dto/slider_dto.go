package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/studio-parallax/maquette-api/internal/models"
)

// labelAliases are the accepted keys for the human-readable question label,
// in precedence order.
var labelAliases = []string{"questionText", "question", "prompt"}

// SliderSubmissionInput is a normalized questionnaire answer ready for the
// submission service. RecordedAt is nil when the caller supplied no
// timestamp; the repository stamps insertion time in that case.
type SliderSubmissionInput struct {
	SessionID    string `validate:"required,max=128"`
	QuestionID   string `validate:"required,max=128"`
	QuestionText *string
	Value        float64
	RecordedAt   *time.Time
}

// SliderSubmissionResponse acknowledges a persisted answer.
type SliderSubmissionResponse struct {
	ID         uint      `json:"id"`
	RecordedAt time.Time `json:"recordedAt"`
}

// NewSliderSubmissionResponse converts a persisted model into a DTO.
func NewSliderSubmissionResponse(model models.SliderSubmission) SliderSubmissionResponse {
	return SliderSubmissionResponse{
		ID:         model.ID,
		RecordedAt: model.RecordedAt,
	}
}

// NormalizeSliderSubmission converts an untrusted JSON object into a
// validated submission. Value accepts numeric strings; finiteness is the
// repository's check, normalization only demands coercibility. The timestamp
// is read from submittedAt first, then recordedAt, and accepts epoch
// milliseconds or a date string.
func NormalizeSliderSubmission(raw map[string]any) (SliderSubmissionInput, error) {
	var input SliderSubmissionInput

	sessionID, err := requiredString(raw, "sessionId")
	if err != nil {
		return SliderSubmissionInput{}, err
	}
	input.SessionID = sessionID

	questionID, err := requiredString(raw, "questionId")
	if err != nil {
		return SliderSubmissionInput{}, err
	}
	input.QuestionID = questionID

	rawValue, present := lookup(raw, "value")
	if !present {
		return SliderSubmissionInput{}, fmt.Errorf("%w: value is required", ErrInvalidPayload)
	}
	value, ok := coerceNumber(rawValue)
	if !ok {
		return SliderSubmissionInput{}, fmt.Errorf("%w: value must be numeric", ErrInvalidPayload)
	}
	input.Value = value

	for _, alias := range labelAliases {
		value, present := lookup(raw, alias)
		if !present {
			continue
		}
		label, ok := value.(string)
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			return SliderSubmissionInput{}, fmt.Errorf("%w: %s must be a non-empty string", ErrValidationFailed, alias)
		}
		input.QuestionText = &label
		break
	}

	for _, key := range []string{"submittedAt", "recordedAt"} {
		value, present := lookup(raw, key)
		if !present {
			continue
		}
		recordedAt, err := parseTimestamp(value)
		if err != nil {
			return SliderSubmissionInput{}, err
		}
		input.RecordedAt = &recordedAt
		break
	}

	return input, nil
}

func requiredString(raw map[string]any, key string) (string, error) {
	value, present := lookup(raw, key)
	if !present {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidPayload, key)
	}
	s, ok := value.(string)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidPayload, key)
	}
	return s, nil
}

// parseTimestamp accepts epoch milliseconds (the JSON number form) or an
// RFC 3339 / date-only string.
func parseTimestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case float64:
		if !isFinite(v) {
			return time.Time{}, fmt.Errorf("%w: epoch value must be finite", ErrInvalidTimestamp)
		}
		return time.UnixMilli(int64(v)).UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q is not a recognized instant", ErrInvalidTimestamp, s)
	default:
		return time.Time{}, fmt.Errorf("%w: expected epoch milliseconds or a date string", ErrInvalidTimestamp)
	}
}
