// Package identity carries the authenticated user through a request as an
// explicit value rather than ambient state.
package identity

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
)

type ctxKey struct{}

const localsKey = "current_user"

var ErrNoUser = errors.New("no authenticated user in context")

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFrom extracts the user stored by WithUser.
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(ctxKey{}).(*models.User)
	return user, ok && user != nil
}

// Attach stores user on the fiber context and on its user context, so both
// handlers and the services they call can read it.
func Attach(c *fiber.Ctx, user *models.User) {
	c.Locals(localsKey, user)
	c.SetUserContext(WithUser(c.UserContext(), user))
}

// Current returns the user attached by the auth guard.
func Current(c *fiber.Ctx) (*models.User, error) {
	if user, ok := c.Locals(localsKey).(*models.User); ok && user != nil {
		return user, nil
	}
	if user, ok := UserFrom(c.UserContext()); ok {
		return user, nil
	}
	return nil, ErrNoUser
}

// CurrentID is a shorthand for handlers that only need the id.
func CurrentID(c *fiber.Ctx) (uuid.UUID, error) {
	user, err := Current(c)
	if err != nil {
		return uuid.Nil, err
	}
	return user.ID, nil
}
