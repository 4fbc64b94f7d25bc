package handlers

import (
	"strconv"

	"secure_chat_service/internal/chat/app"
	"secure_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// StatsSource anything reporting live connection counters
type StatsSource interface {
	Stats() app.HubStats
}

// Health GET /, liveness plus the in-memory registry size
func Health(src StatsSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"hub":    src.Stats(),
		})
	}
}

// DebugLogFlag toggle debug log flag, POST /debug?status=true
func DebugLogFlag(c *fiber.Ctx) error {
	status, err := strconv.ParseBool(c.Query("status"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	logger.Log.Info("debug mode changed", zap.Bool("status", status))
	logger.Log.SetDebugMode(status)
	return c.JSON(fiber.Map{"debug": status})
}
