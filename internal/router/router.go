package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/relawan-api/internal/config"
	"github.com/noah-isme/relawan-api/internal/handler"
	"github.com/noah-isme/relawan-api/internal/middleware"
	"github.com/noah-isme/relawan-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	DB                  *gorm.DB
	Logger              zerolog.Logger
	VisitHandler        *handler.VisitHandler
	NotificationHandler *handler.NotificationHandler
	AuditHandler        *handler.AuditHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	gate := func(spec string) fiber.Handler {
		return middleware.RequireRoles(deps.Logger, spec)
	}
	writeLimit := func(identifier string) fiber.Handler {
		return middleware.RateLimit(identifier, cfg.WriteRateLimit, cfg.WriteRateWindow)
	}

	if deps.VisitHandler != nil {
		visits := api.Group("/visits", jwtMiddleware)
		deps.VisitHandler.Register(visits, handler.VisitGates{
			Read:   gate(cfg.Access.VisitRead),
			Create: gate(cfg.Access.VisitCreate),
			Review: gate(cfg.Access.VisitReview),
			Delete: gate(cfg.Access.VisitDelete),
			Write:  writeLimit("visits"),
		})
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications, writeLimit("notifications"))
	}

	if deps.AuditHandler != nil {
		audit := api.Group("/audit-records", jwtMiddleware, gate(cfg.Access.AuditRead))
		deps.AuditHandler.Register(audit)
	}
}
