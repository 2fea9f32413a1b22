package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	startTime time.Time
	provider  string
	model     string
	checks    map[string]Check
}

func NewHealthHandler(provider, model string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		provider:  provider,
		model:     model,
		checks:    checks,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"service":  "trendcast-api",
		"version":  Version,
		"provider": h.provider,
		"model":    h.model,
		"uptime":   time.Since(h.startTime).String(),
		"time":     time.Now(),
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	checks := fiber.Map{"api": "ok"}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := fiber.StatusOK
	if status != "ready" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}
