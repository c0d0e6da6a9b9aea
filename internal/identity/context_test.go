package identity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/identity"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/models"
)

func TestUserContext(t *testing.T) {
	_, ok := identity.UserFrom(context.Background())
	assert.False(t, ok)

	user := &models.User{ID: uuid.New()}
	got, ok := identity.UserFrom(identity.WithUser(context.Background(), user))
	require.True(t, ok)
	assert.Same(t, user, got)
}

func TestAttachAndCurrent(t *testing.T) {
	user := &models.User{ID: uuid.New(), Name: "Ada"}

	app := fiber.New()
	app.Get("/anon", func(c *fiber.Ctx) error {
		_, err := identity.Current(c)
		assert.ErrorIs(t, err, identity.ErrNoUser)
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/me", func(c *fiber.Ctx) error {
		identity.Attach(c, user)
		return c.Next()
	}, func(c *fiber.Ctx) error {
		id, err := identity.CurrentID(c)
		assert.NoError(t, err)
		assert.Equal(t, user.ID, id)

		fromCtx, ok := identity.UserFrom(c.UserContext())
		assert.True(t, ok)
		assert.Same(t, user, fromCtx)
		return c.SendStatus(fiber.StatusNoContent)
	})

	for _, path := range []string{"/anon", "/me"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
}
