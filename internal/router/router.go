package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/studio-parallax/maquette-api/internal/config"
	"github.com/studio-parallax/maquette-api/internal/handler"
	"github.com/studio-parallax/maquette-api/internal/observability"
	"github.com/studio-parallax/maquette-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	OverrideHandler *handler.OverrideHandler
	SliderHandler   *handler.SliderHandler
	Submissions     service.SubmissionService
}

// Register wires the HTTP routes into the fiber application. The override
// surface lives under the configured base path; the slider intake sits next
// to it so kiosk clients only need one origin.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/healthz", handler.HealthCheck(cfg, deps.Submissions))
	app.Get("/metrics", observability.MetricsHandler())

	base := app.Group(cfg.BasePath)

	if deps.OverrideHandler != nil {
		deps.OverrideHandler.Register(base)
	}

	if deps.SliderHandler != nil {
		deps.SliderHandler.Register(base.Group("/slider-values"))
	}
}
