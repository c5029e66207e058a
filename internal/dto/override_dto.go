package dto

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/studio-parallax/maquette-api/internal/override"
)

// Sentinel errors for payload normalization. Handlers translate these into
// 400 responses or channel error messages.
var (
	// ErrInvalidPayload flags input that is not even the right shape:
	// undecodable JSON, a non-object body, or a missing required field.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrValidationFailed flags a field that is present but out of domain.
	ErrValidationFailed = errors.New("validation failed")
	// ErrInvalidTimestamp flags a submission timestamp that cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// OverrideResponse is the body returned by GET on the override path. The
// override key is always present, null when nothing was ever set.
type OverrideResponse struct {
	Override *override.Override `json:"override"`
}

// NormalizeOverride converts an untrusted JSON object into validated override
// fields. Absent and null fields stay absent; nothing is defaulted here.
// Numeric fields accept numeric strings, boolean fields accept the literal
// strings "true" and "false".
func NormalizeOverride(raw map[string]any) (override.Fields, error) {
	var fields override.Fields

	if value, present := lookup(raw, "modelPath"); present {
		path, ok := value.(string)
		path = strings.TrimSpace(path)
		if !ok || path == "" {
			return override.Fields{}, fmt.Errorf("%w: modelPath must be a non-empty string", ErrValidationFailed)
		}
		fields.ModelPath = &path
	}

	if value, present := lookup(raw, "scale"); present {
		scale, ok := toNumber(value)
		if !ok || scale <= 0 {
			return override.Fields{}, fmt.Errorf("%w: scale must be a positive finite number", ErrValidationFailed)
		}
		fields.Scale = &scale
	}

	if value, present := lookup(raw, "rotation"); present {
		rotation, ok := toNumber(value)
		if !ok {
			return override.Fields{}, fmt.Errorf("%w: rotation must be a finite number", ErrValidationFailed)
		}
		fields.Rotation = &rotation
	}

	if value, present := lookup(raw, "elevation"); present {
		elevation, ok := toNumber(value)
		if !ok {
			return override.Fields{}, fmt.Errorf("%w: elevation must be a finite number", ErrValidationFailed)
		}
		fields.Elevation = &elevation
	}

	if value, present := lookup(raw, "visible"); present {
		visible, ok := toBool(value)
		if !ok {
			return override.Fields{}, fmt.Errorf("%w: visible must be a boolean", ErrValidationFailed)
		}
		fields.Visible = &visible
	}

	if value, present := lookup(raw, "cleared"); present {
		cleared, ok := toBool(value)
		if !ok {
			return override.Fields{}, fmt.Errorf("%w: cleared must be a boolean", ErrValidationFailed)
		}
		// An explicit false means "not a clear request" and produces no field.
		if cleared {
			fields.Cleared = &cleared
		}
	}

	return fields, nil
}

// lookup treats JSON null the same as an absent key.
func lookup(raw map[string]any, key string) (any, bool) {
	value, present := raw[key]
	if !present || value == nil {
		return nil, false
	}
	return value, true
}

// toNumber coerces JSON numbers and numeric strings to a finite float64.
func toNumber(value any) (float64, bool) {
	v, ok := coerceNumber(value)
	return v, ok && isFinite(v)
}

// coerceNumber converts without the finiteness check; slider values defer
// that check to the repository.
func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

// toBool coerces booleans and the literal strings "true"/"false".
func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		if v == "true" {
			return true, true
		}
		if v == "false" {
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
