package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bank-crm/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Customers *handlers.CustomersHandler
	Tickets   *handlers.TicketsHandler
}

// RegisterRoutes wires HTTP routes. Static segments are registered before the
// parameterised ones they would otherwise be captured by.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/", cfg.Health.Root)
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	v1 := app.Group("/api/v1")

	customers := v1.Group("/customers")
	customers.Get("/lookup", cfg.Customers.Lookup)
	customers.Post("/search", cfg.Customers.Search)
	customers.Post("/advanced-search", cfg.Customers.AdvancedSearch)
	customers.Get("/:id", cfg.Customers.Get)
	customers.Get("/:id/accounts", cfg.Customers.Accounts)
	customers.Get("/:id/transactions", cfg.Customers.Transactions)
	customers.Get("/:id/summary", cfg.Customers.Summary)
	customers.Get("/:phone/tickets", cfg.Tickets.ListForCustomer)

	tickets := v1.Group("/tickets")
	tickets.Get("/search", cfg.Tickets.Search)
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Get("/:id/verify", cfg.Tickets.Verify)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
}
