package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/studio-parallax/maquette-api/internal/config"
	"github.com/studio-parallax/maquette-api/internal/database"
	"github.com/studio-parallax/maquette-api/internal/handler"
	"github.com/studio-parallax/maquette-api/internal/middleware"
	"github.com/studio-parallax/maquette-api/internal/router"
	"github.com/studio-parallax/maquette-api/internal/service"
	"github.com/studio-parallax/maquette-api/internal/utils"
)

// The override record is process-wide state with a single writer, so only
// one server may own it at a time. The guard is checked at construction.
var running atomic.Bool

// ErrAlreadyRunning is returned by New while another instance owns the
// override state in this process.
var ErrAlreadyRunning = errors.New("server already running in this process")

// Options carries the collaborators the server serves. DB may be nil when
// persistence is disabled; it is only held for the shutdown sequence.
type Options struct {
	Overrides   service.OverrideService
	Submissions service.SubmissionService
	DB          *gorm.DB
}

// Server owns the fiber application and its teardown order.
type Server struct {
	app       *fiber.App
	cfg       config.Config
	log       zerolog.Logger
	overrides service.OverrideService
	db        *gorm.DB
}

// New builds the HTTP application: fiber configuration, middleware pipeline
// and route table. It fails with ErrAlreadyRunning if an instance already
// holds the override state.
func New(cfg config.Config, logger zerolog.Logger, opts Options) (*Server, error) {
	if !running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ServerHeader:          cfg.AppName,
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})

	router.Register(app, cfg, router.Dependencies{
		OverrideHandler: handler.NewOverrideHandler(opts.Overrides, logger),
		SliderHandler:   handler.NewSliderHandler(opts.Submissions, logger),
		Submissions:     opts.Submissions,
	})

	return &Server{
		app:       app,
		cfg:       cfg,
		log:       logger.With().Str("component", "server").Logger(),
		overrides: opts.Overrides,
		db:        opts.DB,
	}, nil
}

// Listen serves HTTP on the configured address until the listener closes.
func (s *Server) Listen() error {
	s.log.Info().
		Str("address", s.cfg.HTTPAddress()).
		Str("base_path", s.cfg.BasePath).
		Msg("server listening")
	return s.app.Listen(s.cfg.HTTPAddress())
}

// Listener serves on a prepared listener. Tests use it with a loopback port.
func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

// App exposes the fiber application for in-process request tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown tears the server down in order: force-close the display
// connections, stop the HTTP listener, then close persistence. Failures are
// logged and swallowed so teardown always runs to completion. The instance
// guard is released at the end.
func (s *Server) Shutdown(ctx context.Context) {
	defer running.Store(false)

	if s.overrides != nil {
		s.overrides.CloseConnections()
	}

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		s.log.Error().Err(err).Msg("http listener shutdown failed")
	}

	database.Close(s.db, s.log)

	s.log.Info().Msg("server stopped")
}

// errorHandler renders every error escaping the handler chain, including
// fiber's own 404 and 405 routing errors, as the JSON envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	return utils.SendError(c, code, err.Error())
}
