package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/hyfer-go-api/internal/config"
	"github.com/noah-isme/hyfer-go-api/internal/handler"
	"github.com/noah-isme/hyfer-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RunningModuleHandler  *handler.RunningModuleHandler
	TimelineStreamHandler *handler.TimelineStreamHandler
	HealthProbes          []handler.HealthProbe
	JWTMiddleware         fiber.Handler
	RateLimit             fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	handlers := []fiber.Handler{jwtMiddleware}
	if deps.RateLimit != nil {
		handlers = append(handlers, deps.RateLimit)
	}
	runningModules := api.Group("/running-modules", handlers...)

	// The stream owns /ws and has to be matched before /:groupId.
	if deps.TimelineStreamHandler != nil {
		deps.TimelineStreamHandler.Register(runningModules)
	}
	if deps.RunningModuleHandler != nil {
		deps.RunningModuleHandler.Register(runningModules)
	}
}
