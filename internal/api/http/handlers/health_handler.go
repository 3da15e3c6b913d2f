package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/courier-portal/internal/persistence"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name     string
	pinger   Pinger
	optional bool
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	deps        []dependency
}

// NewHealthHandler returns a new handler instance. Tab storage in redis is
// required; postgres only holds legacy device storage and may be disabled.
func NewHealthHandler(serviceName, version string, postgres, redis Pinger) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		deps: []dependency{
			{name: "postgres", pinger: postgres, optional: true},
			{name: "redis", pinger: redis},
		},
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready pings every dependency and answers 503 when a required one is down.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	status := fiber.Map{}
	ready := true
	for _, dep := range h.deps {
		switch err := dep.pinger.Ping(ctx); {
		case err == nil:
			status[dep.name] = "ok"
		case dep.optional && errors.Is(err, persistence.ErrPostgresDisabled):
			status[dep.name] = "disabled"
		default:
			status[dep.name] = err.Error()
			ready = false
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": status,
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": status})
}
