package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpline/escalation-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
	Facts   *handlers.FactsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/healthz", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/resolve", cfg.Tickets.ResolveTicket)
	tickets.Post("/:id/cancel", cfg.Tickets.CancelTicket)

	facts := app.Group("/facts")
	facts.Get("/", cfg.Facts.ListFacts)
	facts.Post("/", cfg.Facts.CreateFact)
	facts.Get("/:id", cfg.Facts.GetFact)
	facts.Put("/:id", cfg.Facts.UpdateFact)
	facts.Delete("/:id", cfg.Facts.DeleteFact)
}
