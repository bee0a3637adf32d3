// Package httpapi exposes the task sync service over HTTP. It owns the
// Fiber application, the auth and rate-limit middleware, and the JSON
// request/response shapes.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/dmitrijs2005/tasksync/internal/logging"
	"github.com/dmitrijs2005/tasksync/internal/server/auth"
	"github.com/dmitrijs2005/tasksync/internal/server/config"
	"github.com/dmitrijs2005/tasksync/internal/server/ratelimit"
	"github.com/dmitrijs2005/tasksync/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP front of the service.
type Server struct {
	cfg      *config.Config
	app      *fiber.App
	logger   logging.Logger
	verifier *auth.Verifier
	tasks    *services.TaskService
	limiter  ratelimit.Allower
}

// New assembles the Fiber application with all middleware and routes.
func New(cfg *config.Config, logger logging.Logger, verifier *auth.Verifier,
	tasks *services.TaskService, limiter ratelimit.Allower) *Server {

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		verifier: verifier,
		tasks:    tasks,
		limiter:  limiter,
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             10 * 1024 * 1024,
	})

	s.app.Use(recover.New())
	s.app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(s.corsMiddleware())

	s.setupRoutes()

	return s
}

// App exposes the underlying Fiber application for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupRoutes() {
	// Health check stays outside the rate limits.
	s.app.Get("/health", s.handleHealth)

	// Auth routes are anonymous by nature, so their stricter limit is
	// keyed by client IP.
	authRoutes := s.app.Group("/api/auth", s.rateLimit(s.cfg.AuthRateLimitMax, fiber.Map{
		"error":   "Too many authentication attempts",
		"message": "Please try again later.",
	}))
	authRoutes.Post("/verify", s.handleVerifyToken)

	// Task routes authenticate first so the limit is shared per owner
	// across all of that owner's devices.
	taskRoutes := s.app.Group("/api/tasks", s.requireAuth(), s.rateLimit(s.cfg.RateLimitMax, fiber.Map{
		"error":   "Too many requests",
		"message": "Rate limit exceeded. Please try again later.",
	}))
	taskRoutes.Get("/", s.handleListTasks)
	taskRoutes.Post("/sync", s.handleSync)
	taskRoutes.Put("/:id", s.handleUpdateTask)
	taskRoutes.Delete("/:id", s.handleDeleteTask)

	s.app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.cfg.EndpointAddrHTTP)
	}()

	s.logger.Info(ctx, "http server started", "addr", s.cfg.EndpointAddrHTTP)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info(ctx, "shutting down http server")
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	}
}
