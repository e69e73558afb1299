package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bank-crm/internal/domain"
	"github.com/spec-kit/bank-crm/internal/observability"
	"github.com/spec-kit/bank-crm/internal/repository"
)

// Pinger is a dependency that can be probed for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	stats       repository.StatsRepository
	store       repository.Connection
	redis       Pinger
	metrics     *observability.Metrics
}

// HealthDependencies bundles what the health endpoints probe. Redis is optional.
type HealthDependencies struct {
	ServiceName string
	Version     string
	Stats       repository.StatsRepository
	Store       repository.Connection
	Redis       Pinger
	Metrics     *observability.Metrics
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{
		serviceName: deps.ServiceName,
		version:     deps.Version,
		stats:       deps.Stats,
		store:       deps.Store,
		redis:       deps.Redis,
		metrics:     deps.Metrics,
	}
}

// Root GET /.
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":   h.serviceName,
		"status":    "running",
		"timestamp": now(),
		"version":   h.version,
	})
}

// Health GET /health reports store connectivity and collection counts.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	stats := h.stats.GetDatabaseStats(c.UserContext())
	status, code := "healthy", fiber.StatusOK
	if stats.ConnectionStatus != domain.ConnectionHealthy {
		status, code = "unhealthy", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"database":  stats,
		"timestamp": now(),
	})
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if _, err := h.store.EnsureConnection(ctx); err != nil {
		depStatus["store"] = "unavailable"
		ready = false
	} else {
		depStatus["store"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			depStatus["redis"] = "unavailable"
			ready = false
		} else {
			depStatus["redis"] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
		"timestamp": now(),
	})
}

// Metrics GET /metrics exposes the in-process request counters.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
