package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	auth middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	oauthHandler *handlers.OAuthHandler,
	healthHandler *handlers.HealthHandler,
	gatherer prometheus.Gatherer,
) {
	requireAuth := middleware.RequireAuth(cfg.JWTSecret, auth)
	guestOnly := middleware.RedirectIfAuthenticated(auth, cfg.LoginRedirect)

	app.Get("/api/health", healthHandler.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	authGroup := app.Group("/auth")

	// Entry points: callers with a live session are sent on to the app.
	authGroup.Get("/login", guestOnly, authHandler.LoginPage)
	authGroup.Get("/register", guestOnly, authHandler.RegisterPage)

	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Get("/profile", requireAuth, authHandler.Profile)

	// External providers
	authGroup.Get("/google", oauthHandler.GoogleStart)
	authGroup.Get("/google/callback", oauthHandler.GoogleCallback)
	authGroup.Post("/apple", oauthHandler.AppleSignIn)
}
