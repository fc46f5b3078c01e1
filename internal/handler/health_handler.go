package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/config"
	"github.com/noah-isme/relawan-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Service     string            `json:"service"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns a handler that reports application health, pinging the database when given.
func HealthCheck(cfg config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if db != nil {
			payload.Checks = map[string]string{"database": "ok"}
			if err := pingDatabase(c.UserContext(), db); err != nil {
				payload.Status = "degraded"
				payload.Checks["database"] = err.Error()
				return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

func pingDatabase(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
