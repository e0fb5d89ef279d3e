package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Admin          *handlers.AdminHandler
	Assist         *handlers.AssistHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	authenticated := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	authenticated.Get("/categories", cfg.Tickets.ListCategories)
	authenticated.Get("/categories/:id/fields", cfg.Tickets.ListCategoryFields)

	tickets := authenticated.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:id/rating", cfg.Tickets.RateTicket)

	if cfg.Assist != nil {
		authenticated.Post("/assist/query", cfg.Assist.Query)
	}

	staff := authenticated.Group("/staff", auth.RequireStaff())
	staff.Get("/tickets", cfg.StaffTickets.ListTickets)
	staff.Get("/tickets/overdue", cfg.StaffTickets.ListOverdue)
	staff.Get("/tickets/:id", cfg.StaffTickets.GetTicket)
	staff.Post("/tickets/:id/assign", cfg.StaffTickets.Assign)
	staff.Post("/tickets/:id/status", cfg.StaffTickets.UpdateStatus)
	staff.Post("/tickets/:id/resolve", cfg.StaffTickets.Resolve)
	staff.Post("/tickets/:id/priority", cfg.StaffTickets.UpdatePriority)
	staff.Post("/tickets/:id/comments", cfg.StaffTickets.AddComment)
	staff.Delete("/tickets/:id/comments/:commentID", cfg.StaffTickets.DeleteComment)
	staff.Get("/tickets/:id/sla", cfg.StaffTickets.CheckSLA)
	staff.Get("/tickets/:id/history", cfg.StaffTickets.History)
	staff.Get("/templates", cfg.StaffTickets.ListTemplates)
	staff.Post("/templates/:id/render", cfg.StaffTickets.RenderTemplate)

	admin := authenticated.Group("/admin", auth.RequireAdmin())
	admin.Post("/staff", cfg.Users.CreateStaff)
	admin.Get("/categories", cfg.Admin.ListCategories)
	admin.Post("/categories", cfg.Admin.CreateCategory)
	admin.Put("/categories/:id", cfg.Admin.UpdateCategory)
	admin.Post("/categories/:id/deactivate", cfg.Admin.DeactivateCategory)
	admin.Delete("/categories/:id", cfg.Admin.DeleteCategory)
	admin.Get("/categories/:id/fields", cfg.Admin.ListFields)
	admin.Post("/categories/:id/fields", cfg.Admin.CreateField)
	admin.Post("/categories/:id/fields/reorder", cfg.Admin.ReorderFields)
	admin.Put("/fields/:id", cfg.Admin.UpdateField)
	admin.Delete("/fields/:id", cfg.Admin.DeleteField)
	admin.Get("/templates", cfg.Admin.ListTemplates)
	admin.Post("/templates", cfg.Admin.CreateTemplate)
	admin.Put("/templates/:id", cfg.Admin.UpdateTemplate)
	admin.Delete("/templates/:id", cfg.Admin.DeleteTemplate)
}
