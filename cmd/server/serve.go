package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/events"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/oauth"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/repository"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/session"
)

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	// Structured logging (JSON to stdout)
	stdout := logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return err
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		return err
	}
	defer database.Close()
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		return err
	}

	// ERROR+ records also go to system_logs
	dbLogs := logging.NewDBHandler(logging.NewGormLogWriter(database.DB))
	defer dbLogs.Stop()
	slog.SetDefault(slog.New(logging.NewFanout(stdout, dbLogs)))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logging.StartCleanup(ctx, database.DB, cfg.LogRetention)

	// Redis-backed OAuth state (optional)
	var rdb *redis.Client
	var states oauth.StateStore
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			slog.Warn("redis unavailable, oauth state falls back to cookie only", "error", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			states = oauth.NewRedisStateStore(rdb)
			defer rdb.Close()
		}
	}

	// Auth events (optional)
	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		p, err := events.DialAMQP(cfg.AMQPURL, cfg.AuthEventsQueue)
		if err != nil {
			slog.Warn("rabbitmq unavailable, auth events disabled", "error", err)
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	authMetrics := metrics.NewAuth(registry)

	// Services
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authService := services.NewAuthService(
		repository.NewUserRepository(database.DB),
		services.NewBcryptHasher(cfg.BcryptCost),
		tokens,
		publisher,
		authMetrics,
	)
	transport := session.NewTransport(cfg.SecureCookies(), tokens.TTL())

	// External providers
	var providers []string
	var google oauth.RedirectProvider
	if cfg.GoogleEnabled() {
		google = oauth.NewGoogle(oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		providers = append(providers, oauth.ProviderGoogle)
	}
	var apple oauth.TokenProvider
	if cfg.AppleEnabled() {
		a, err := oauth.NewApple(cfg.AppleJWKSURL, cfg.AppleClientIDs)
		if err != nil {
			slog.Warn("apple sign in disabled", "error", err)
		} else {
			defer a.Close()
			apple = a
			providers = append(providers, oauth.ProviderApple)
		}
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, transport, cfg.LoginRedirect, providers...)
	oauthHandler := handlers.NewOAuthHandler(authService, transport, google, apple, states, cfg.LoginRedirect)
	healthHandler := handlers.NewHealthHandler(rdb)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	routes.Setup(app, cfg, authService, authHandler, oauthHandler, healthHandler, registry)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "providers", providers)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed to start", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
