package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bankverify/bankverify/internal/audit"
	"github.com/bankverify/bankverify/internal/config"
	"github.com/bankverify/bankverify/internal/middleware"
	"github.com/bankverify/bankverify/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	audit  *audit.AsyncRecorder
	logger *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, cache redis.UniversalClient, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler(logger),
	})

	var trail audit.Repository
	if db != nil {
		trail = audit.NewPostgresRepository(db)
	} else {
		trail = audit.NewMemoryRepository()
	}
	recorder := audit.NewAsyncRecorder(trail, logger, audit.Options{})

	deps := routes.Deps{
		Cfg:        cfg,
		DB:         db,
		Cache:      cache,
		Logger:     logger,
		Audit:      recorder,
		AuditTrail: trail,
	}
	if err := routes.Setup(app, deps); err != nil {
		_ = recorder.Close(context.Background())
		return nil, err
	}

	return &Server{app: app, cfg: cfg, audit: recorder, logger: logger}, nil
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server, then flushes pending audit events.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.app.ShutdownWithContext(ctx)
	if err := s.audit.Close(ctx); err != nil {
		if httpErr != nil {
			return fmt.Errorf("%w; audit: %v", httpErr, err)
		}
		return fmt.Errorf("audit: %w", err)
	}
	return httpErr
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := http.StatusInternalServerError
		msg := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		} else {
			logger.Error("unhandled error", "path", c.Path(), "request_id", middleware.RequestIDFrom(c), "error", err)
		}
		return c.Status(code).JSON(fiber.Map{
			"error":      msg,
			"request_id": middleware.RequestIDFrom(c),
		})
	}
}
