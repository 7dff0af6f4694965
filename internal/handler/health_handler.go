package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/config"
	"github.com/vasiprashanti/techlearn-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Service      string    `json:"service"`
	Environment  string    `json:"environment"`
	Database     string    `json:"database"`
	JudgeBackend string    `json:"judge_backend"`
}

// HealthCheck reports service health, including database reachability when db is set.
func HealthCheck(cfg config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:       "ok",
			Timestamp:    time.Now().UTC(),
			Service:      cfg.AppName,
			Environment:  cfg.AppEnv,
			Database:     "skipped",
			JudgeBackend: cfg.JudgeBackend,
		}

		if db != nil {
			payload.Database = "ok"
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
				payload.Status = "degraded"
				payload.Database = "unreachable"
				return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
					Success: false,
					Message: "service degraded",
					Data:    payload,
				})
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
