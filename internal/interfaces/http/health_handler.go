package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// HealthCheck verifica una dependencia (p. ej. la base de datos).
type HealthCheck func(ctx context.Context) error

// HealthHandler GET /health (público).
type HealthHandler struct {
	ping HealthCheck
}

// NewHealthHandler construye el handler; ping puede ser nil.
func NewHealthHandler(ping HealthCheck) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// Check godoc
// @Summary      Estado del servicio
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /health [get]
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health: dependencia no disponible")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
