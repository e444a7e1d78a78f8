package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"whiteboard-backend/internal/cache"
)

// HealthHandler reports the state of the storage tiers behind the server.
type HealthHandler struct {
	db    *gorm.DB
	cache *cache.Client // nil when redis is not configured
}

func NewHealthHandler(db *gorm.DB, cacheClient *cache.Client) *HealthHandler {
	return &HealthHandler{db: db, cache: cacheClient}
}

// ComponentCheck is one dependency's status.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the aggregate health report.
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

// Check pings postgres and redis. A dead database makes the whole report
// unhealthy; a dead cache only degrades it, since the store runs without one.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	dbStart := time.Now()
	sqlDB, err := h.db.DB()
	if err != nil {
		response.Status = "unhealthy"
		response.Checks["database"] = ComponentCheck{
			Status: "unhealthy",
			Error:  "failed to get database connection",
		}
	} else if err := sqlDB.Ping(); err != nil {
		response.Status = "unhealthy"
		response.Checks["database"] = ComponentCheck{
			Status: "unhealthy",
			Error:  "database ping failed",
		}
	} else {
		response.Checks["database"] = ComponentCheck{
			Status:  "healthy",
			Latency: time.Since(dbStart).String(),
		}
	}

	if h.cache != nil {
		redisStart := time.Now()
		if err := h.cache.Health(c.Context()); err != nil {
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
			response.Checks["redis"] = ComponentCheck{
				Status: "degraded",
				Error:  "redis ping failed",
			}
		} else {
			response.Checks["redis"] = ComponentCheck{
				Status:  "healthy",
				Latency: time.Since(redisStart).String(),
			}
		}
	} else {
		response.Checks["redis"] = ComponentCheck{
			Status: "not_configured",
		}
	}

	statusCode := fiber.StatusOK
	if response.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(response)
}

// Liveness is the bare liveness probe.
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Readiness checks the database connection before reporting ready.
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
	}
	if err := sqlDB.Ping(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
	}
	return c.SendString("READY")
}
