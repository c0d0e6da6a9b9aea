package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/dto"
)

type HealthHandler struct {
	ping func() error
	rdb  *redis.Client
}

// NewHealthHandler reports on the database and, when rdb is non-nil, Redis.
func NewHealthHandler(rdb *redis.Client) *HealthHandler {
	return &HealthHandler{ping: database.Ping, rdb: rdb}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"
	dbStatus := "ok"
	if err := h.ping(); err != nil {
		dbStatus = "unhealthy"
		status = "degraded"
	}

	resp := dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
	}
	if h.rdb != nil {
		resp.Redis = "ok"
		if err := h.rdb.Ping(c.UserContext()).Err(); err != nil {
			resp.Redis = "unhealthy"
			resp.Status = "degraded"
		}
	}

	code := fiber.StatusOK
	if resp.Status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(resp)
}
