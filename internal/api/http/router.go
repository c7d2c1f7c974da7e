package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
	Roster  *handlers.RosterHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/tickets", cfg.Tickets.CreateTicket)
	app.Get("/tickets", cfg.Tickets.ListTickets)
	app.Get("/tickets/:id", cfg.Tickets.GetTicket)
	app.Post("/tickets/:id/triage", cfg.Tickets.TriggerTriage)
	app.Post("/tickets/:id/status", cfg.Tickets.ChangeStatus)
	app.Post("/tickets/:id/reopen", cfg.Tickets.ReopenTicket)

	app.Get("/handlers", cfg.Roster.ListHandlers)
	app.Get("/metrics/tickets", cfg.Tickets.Metrics)
}
