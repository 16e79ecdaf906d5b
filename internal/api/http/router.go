package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/helpdesk-routing/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-routing/internal/auth"
	"github.com/spec-kit/helpdesk-routing/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	SLA            *handlers.SLAHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimit      fiber.Handler
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if reg := cfg.Metrics.Registry(); reg != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	internal := app.Group("/internal", cfg.AuthMiddleware.Handle)
	if cfg.RateLimit != nil {
		internal.Use(cfg.RateLimit)
	}

	// Scopes are attached per route: group middleware would apply to every
	// route sharing the /tickets prefix.
	ticketsScope := auth.RequireScope(auth.ScopeTickets)
	workflowScope := auth.RequireScope(auth.ScopeWorkflow)
	internal.Post("/tickets", ticketsScope, cfg.Tickets.Create)
	internal.Get("/tickets/:id", ticketsScope, cfg.Tickets.Get)
	internal.Get("/tickets/:id/history", ticketsScope, cfg.Tickets.History)
	internal.Post("/tickets/:id/status", ticketsScope, cfg.Tickets.TransitionStatus)
	internal.Post("/tickets/:id/workflow", workflowScope, cfg.Tickets.RunWorkflow)
	internal.Post("/tickets/:id/assigned", workflowScope, cfg.Tickets.Assigned)
	internal.Post("/tickets/:id/escalated", workflowScope, cfg.Tickets.Escalated)

	users := internal.Group("/users", auth.RequireScope(auth.ScopeTickets))
	users.Post("", cfg.Users.Create)
	users.Put("/:id/skills", cfg.Users.UpdateSkills)
	users.Put("/:id/role", cfg.Users.UpdateRole)
	users.Post("/:id/login", cfg.Users.Login)

	internal.Post("/sla/sweep", auth.RequireScope(auth.ScopeSLA), cfg.SLA.Sweep)
}
