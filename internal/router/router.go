package router

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/vasiprashanti/techlearn-api/internal/config"
	"github.com/vasiprashanti/techlearn-api/internal/handler"
	"github.com/vasiprashanti/techlearn-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RoundHandler      *handler.RoundHandler
	AssessmentHandler *handler.AssessmentHandler
	JWTMiddleware     fiber.Handler
	OTPRateLimit      fiber.Handler
	MetricsHandler    fiber.Handler
	DB                *gorm.DB
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB))

	if deps.MetricsHandler != nil {
		app.Get("/metrics", deps.MetricsHandler)
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Examinee facing round access, OTP and submission
	if deps.AssessmentHandler != nil {
		deps.AssessmentHandler.Register(api.Group("/rounds"), deps.OTPRateLimit)
	}

	// Staff round management
	if deps.RoundHandler != nil {
		admin := api.Group("/admin/rounds", jwtMiddleware, middleware.RequireRole("admin", "teacher"))
		deps.RoundHandler.Register(admin)
	}
}
