package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/triage-desk/internal/api/http/handlers"
	"github.com/spec-kit/triage-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Webhooks       *handlers.WebhookHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware fiber.Handler
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	api.Post("/webhooks/clerk", cfg.Webhooks.Receive)

	authGroup := api.Group("/auth", cfg.AuthMiddleware)
	authGroup.Get("/profile", cfg.Users.Profile)
	authGroup.Put("/profile", cfg.Users.UpdateProfile)
	authGroup.Get("/users", auth.RequireAdmin(), cfg.Users.ListUsers)
	authGroup.Put("/update-user", auth.RequireAdmin(), cfg.Users.UpdateUser)

	tickets := api.Group("/tickets", cfg.AuthMiddleware)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
}
