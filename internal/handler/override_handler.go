package handler

import (
	"errors"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/studio-parallax/maquette-api/internal/dto"
	"github.com/studio-parallax/maquette-api/internal/service"
	"github.com/studio-parallax/maquette-api/internal/utils"
)

// OverrideHandler serves the override record over HTTP and upgrades display
// clients onto the bidirectional channel. Both surfaces share the base path.
type OverrideHandler struct {
	service service.OverrideService
	logger  zerolog.Logger
}

// NewOverrideHandler constructs an override handler.
func NewOverrideHandler(service service.OverrideService, logger zerolog.Logger) *OverrideHandler {
	return &OverrideHandler{
		service: service,
		logger:  logger.With().Str("component", "override_handler").Logger(),
	}
}

// Register wires the override routes. GET doubles as the websocket upgrade
// target: requests carrying upgrade headers join the channel, plain GETs
// read the current state.
func (h *OverrideHandler) Register(router fiber.Router) {
	upgrade := websocket.New(h.handleConnection)

	router.Get("", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return upgrade(c)
		}
		return h.current(c)
	})
	router.Post("", h.update)
	router.Delete("", h.clear)
}

func (h *OverrideHandler) current(c *fiber.Ctx) error {
	return c.JSON(dto.OverrideResponse{Override: h.service.Current()})
}

func (h *OverrideHandler) update(c *fiber.Ctx) error {
	var raw map[string]any
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload: expected a JSON object")
	}

	if _, err := h.service.Update(c.UserContext(), raw); err != nil {
		switch {
		case errors.Is(err, dto.ErrInvalidPayload),
			errors.Is(err, dto.ErrValidationFailed),
			errors.Is(err, service.ErrEmptyUpdate):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("override update failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to apply override")
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *OverrideHandler) clear(c *fiber.Ctx) error {
	h.service.Clear(c.UserContext())
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *OverrideHandler) handleConnection(conn *websocket.Conn) {
	remote := conn.RemoteAddr().String()
	h.logger.Info().Str("remote_addr", remote).Msg("display websocket connected")
	h.service.ServeConnection(conn)
	h.logger.Info().Str("remote_addr", remote).Msg("display websocket disconnected")
}
