package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bankverify/bankverify/internal/aggregator"
	"github.com/bankverify/bankverify/internal/audit"
	"github.com/bankverify/bankverify/internal/auth"
	"github.com/bankverify/bankverify/internal/borrower"
	"github.com/bankverify/bankverify/internal/config"
	"github.com/bankverify/bankverify/internal/identity"
	"github.com/bankverify/bankverify/internal/middleware"
	"github.com/bankverify/bankverify/internal/notification"
	"github.com/bankverify/bankverify/internal/profile"
	"github.com/bankverify/bankverify/internal/verification"
)

const (
	loginAttemptsPerMinute = 5
	resendMax              = 3
	resendWindow           = 10 * time.Minute
	aggregatorTimeout      = 10 * time.Second
)

// Deps aggregates shared dependencies required to wire routes.
// DB and Cache are optional in development.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  redis.UniversalClient
	Logger *slog.Logger
	// Audit receives audit events; AuditTrail reads them back.
	Audit      audit.Recorder
	AuditTrail audit.Repository
	Notifier   notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.AccessLog(d.Logger))
	app.Use(cors.New(corsConfig(d.Cfg)))

	RegisterHealthRoutes(app, d)

	identityRepo, verificationRepo, profileRepo := repositories(d)

	identitySvc := identity.NewService(identityRepo, d.Logger)
	if _, err := identitySvc.EnsureBootstrapAdmin(context.Background(), d.Cfg.BootstrapAdminEmail, d.Cfg.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	authSvc := auth.NewService(d.Cfg, identityRepo)
	verificationSvc := verification.NewService(verificationRepo, d.Notifier, d.Audit, d.Logger, d.Cfg.BorrowerBaseURL)
	profileSvc := profile.NewService(profileRepo)

	var sessions borrower.SessionStore
	if d.Cache != nil {
		sessions = borrower.NewRedisSessionStore(d.Cache, d.Cfg.SessionTTL)
	} else {
		sessions = borrower.NewMemorySessionStore()
	}
	borrowerSvc := borrower.NewService(verificationSvc, sessions, aggregators(d.Cfg), d.Audit, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterBorrowerRoutes(api, borrower.NewHandler(borrowerSvc))

	authHandler := auth.NewHandler(identitySvc, authSvc)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, loginAttemptsPerMinute))

	protected := api.Group("", middleware.JWTAuth(authSvc))
	protected.Post("/auth/logout", authHandler.Logout)
	RegisterIdentityRoutes(protected, identity.NewHandler(identitySvc))
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	RegisterVerificationRoutes(protected, verification.NewHandler(verificationSvc, d.AuditTrail), idempotent,
		middleware.ResendRateLimit(d.Cache, resendMax, resendWindow))
	RegisterProfileRoutes(protected, profile.NewHandler(profileSvc))

	return nil
}

func repositories(d Deps) (identity.Repository, verification.Repository, profile.Repository) {
	if d.DB != nil {
		return identity.NewPostgresRepository(d.DB),
			verification.NewPostgresRepository(d.DB),
			profile.NewPostgresRepository(d.DB)
	}
	d.Logger.Warn("DATABASE_URL not set, using in-memory repositories")
	return identity.NewMemoryRepository(),
		verification.NewMemoryRepository(),
		profile.NewMemoryRepository(profile.SampleProfiles(time.Now())...)
}

func aggregators(cfg config.Config) *aggregator.Registry {
	var stripe, teller aggregator.Connector = aggregator.StaticConnector{Kind: aggregator.ProviderStripe},
		aggregator.StaticConnector{Kind: aggregator.ProviderTeller}
	if cfg.Stripe.SecretKey != "" {
		stripe = aggregator.NewStripeConnector(cfg.Stripe.SecretKey, cfg.Stripe.APIBase, &http.Client{Timeout: aggregatorTimeout})
	}
	if cfg.Teller.ApplicationID != "" {
		teller = aggregator.NewTellerConnector(cfg.Teller.ApplicationID, cfg.Teller.Environment, cfg.Teller.ConnectURL, cfg.Teller.RedirectURI)
	}
	return aggregator.NewRegistry(stripe, teller)
}

func corsConfig(cfg config.Config) cors.Config {
	conf := cors.Config{
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization," + middleware.IdempotencyKeyHeader + "," + middleware.RequestIDHeader,
		ExposeHeaders: middleware.RequestIDHeader,
	}
	if len(cfg.AllowedOrigins) > 0 {
		conf.AllowOrigins = strings.Join(cfg.AllowedOrigins, ",")
	} else {
		conf.AllowOrigins = "*"
	}
	return conf
}
