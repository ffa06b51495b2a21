package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/uniticket/internal/api/http/handlers"
	"github.com/spec-kit/uniticket/internal/auth"
	"github.com/spec-kit/uniticket/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Messages       *handlers.MessagesHandler
	AuthMiddleware *auth.AuthMiddleware
	// RateLimit guards every /api route. Optional.
	RateLimit fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	var apiMiddleware []fiber.Handler
	if cfg.RateLimit != nil {
		apiMiddleware = append(apiMiddleware, cfg.RateLimit)
	}
	api := app.Group("/api", apiMiddleware...)
	api.Get("", cfg.Health.Banner)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protect := cfg.AuthMiddleware.Handle
	authGroup.Get("/me", protect, cfg.Users.Me)

	staffOrAdmin := auth.RequireRoles(domain.RoleStaff, domain.RoleAdmin)
	adminOnly := auth.RequireRoles(domain.RoleAdmin)

	tickets := api.Group("/tickets", protect)
	tickets.Get("/stats/overview", staffOrAdmin, cfg.Tickets.Stats)
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", adminOnly, cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/messages", cfg.Messages.AddMessage)
	tickets.Get("/:id/messages", cfg.Messages.ListMessages)

	messages := api.Group("/messages", protect)
	messages.Put("/:id", cfg.Messages.UpdateMessage)
	messages.Delete("/:id", cfg.Messages.DeleteMessage)

	admin := api.Group("/admin", protect, adminOnly)
	admin.Get("/tickets/:id/audit", cfg.Tickets.AuditTicket)
}
