package handler

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/studio-parallax/maquette-api/internal/dto"
	"github.com/studio-parallax/maquette-api/internal/repository"
	"github.com/studio-parallax/maquette-api/internal/service"
	"github.com/studio-parallax/maquette-api/internal/utils"
)

// SliderHandler ingests questionnaire slider submissions.
type SliderHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSliderHandler constructs a slider handler.
func NewSliderHandler(service service.SubmissionService, logger zerolog.Logger) *SliderHandler {
	return &SliderHandler{
		service: service,
		logger:  logger.With().Str("component", "slider_handler").Logger(),
	}
}

// Register wires the submission route.
func (h *SliderHandler) Register(router fiber.Router) {
	router.Post("", h.submit)
}

func (h *SliderHandler) submit(c *fiber.Ctx) error {
	var raw map[string]any
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload: expected a JSON object")
	}

	input, err := dto.NormalizeSliderSubmission(raw)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.service.Submit(c.UserContext(), input)
	if err != nil {
		switch {
		case errors.Is(err, dto.ErrValidationFailed),
			errors.Is(err, repository.ErrInvalidValue):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStorageUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "submission storage is not available")
		case errors.Is(err, service.ErrDuplicateSubmission):
			return utils.SendError(c, fiber.StatusTooManyRequests, "duplicate submission")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("slider submission failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to record submission")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submission accepted", response)
}
