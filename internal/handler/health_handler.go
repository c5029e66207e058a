package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/studio-parallax/maquette-api/internal/config"
	"github.com/studio-parallax/maquette-api/internal/service"
	"github.com/studio-parallax/maquette-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Persistence string    `json:"persistence"`
}

// HealthCheck returns a handler that reports application health. The server
// is healthy even without persistence; the payload says which mode it is in.
func HealthCheck(cfg config.Config, submissions service.SubmissionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		persistence := "disabled"
		if submissions != nil && submissions.PersistenceEnabled() {
			persistence = "enabled"
		}

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Persistence: persistence,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
