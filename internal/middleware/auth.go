package middleware

import (
	"context"
	"errors"
	"log/slog"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/session"
)

const tokenLocalsKey = "jwt"

// Authenticator is what the guards need from the auth service.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
	CurrentUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Unauthorized: invalid or expired token",
	})
}

// RequireAuth accepts a session token from the Authorization bearer header or
// the session cookie, verifies it, loads the user (without password hash) and
// attaches it to the request. Any failure ends the request with 401.
func RequireAuth(secret string, auth Authenticator) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(secret)},
		TokenLookup: "cookie:" + session.CookieName + ",header:" + fiber.HeaderAuthorization,
		AuthScheme:  "Bearer",
		ContextKey:  tokenLocalsKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return unauthorized(c)
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			token, ok := c.Locals(tokenLocalsKey).(*jwt.Token)
			if !ok || token == nil {
				return unauthorized(c)
			}
			userID, err := services.SubjectFromClaims(token.Claims)
			if err != nil {
				return unauthorized(c)
			}
			user, err := auth.CurrentUser(c.UserContext(), userID)
			if err != nil {
				if !errors.Is(err, services.ErrUserNotFound) {
					slog.Error("failed to load session user", "user_id", userID.String(), "error", err)
					return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
						Error: true, Message: "Internal server error",
					})
				}
				return unauthorized(c)
			}
			identity.Attach(c, user)
			return c.Next()
		},
	})
}

// RedirectIfAuthenticated sends callers that already hold a valid session
// away from the login and registration entry points.
func RedirectIfAuthenticated(auth Authenticator, target string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := session.Extract(c)
		if token == "" {
			return c.Next()
		}
		if _, err := auth.Authenticate(c.UserContext(), token); err != nil {
			return c.Next()
		}
		return c.Redirect(target, fiber.StatusFound)
	}
}
