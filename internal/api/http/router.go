package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guayoyo/loyalty-service/internal/api/http/handlers"
	"github.com/guayoyo/loyalty-service/internal/auth"
	"github.com/guayoyo/loyalty-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tiers          *handlers.TiersHandler
	Accounts       *handlers.AccountsHandler
	AuthMiddleware *auth.SessionMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")
	v1.Get("/tiers", cfg.Tiers.List)
	v1.Post("/accounts", cfg.Accounts.Register)
	v1.Post("/sessions", cfg.Accounts.Login)

	protected := v1.Group("", cfg.AuthMiddleware.Handle)
	protected.Delete("/sessions/current", cfg.Accounts.Logout)
	protected.Get("/me", cfg.Accounts.Me)
	protected.Post("/me/visits", cfg.Accounts.RecordVisit)
	protected.Post("/me/redemptions/:tierId", cfg.Accounts.Redeem)
}
