package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
)

func healthApp(h *HealthHandler) *fiber.App {
	app := fiber.New()
	app.Get("/api/health", h.Check)
	return app
}

func TestHealthCheck(t *testing.T) {
	t.Run("database up, no redis", func(t *testing.T) {
		h := &HealthHandler{ping: func() error { return nil }}
		resp := do(t, healthApp(h), httptest.NewRequest(http.MethodGet, "/api/health", nil))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body dto.HealthResponse
		decode(t, resp, &body)
		assert.Equal(t, "ok", body.Status)
		assert.Empty(t, body.Redis)
	})

	t.Run("database down", func(t *testing.T) {
		h := &HealthHandler{ping: func() error { return errors.New("down") }}
		resp := do(t, healthApp(h), httptest.NewRequest(http.MethodGet, "/api/health", nil))
		require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

		var body dto.HealthResponse
		decode(t, resp, &body)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "unhealthy", body.DB)
	})

	t.Run("redis down", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectPing().SetErr(errors.New("connection refused"))

		h := &HealthHandler{ping: func() error { return nil }, rdb: rdb}
		resp := do(t, healthApp(h), httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

		var body dto.HealthResponse
		decode(t, resp, &body)
		assert.Equal(t, "unhealthy", body.Redis)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis up", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		mock.ExpectPing().SetVal("PONG")

		h := &HealthHandler{ping: func() error { return nil }, rdb: rdb}
		resp := do(t, healthApp(h), httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}
