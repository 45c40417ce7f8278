package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/handler/middleware"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/policy"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/service"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/tenancy"
)

type Handlers struct {
	Auth       *AuthHandler
	User       *UserHandler
	Session    *SessionHandler
	Setup      *SetupHandler
	Company    *CompanyHandler
	Invitation *InvitationHandler
	Pipeline   *PipelineHandler
	Project    *ProjectHandler
	Health     *HealthHandler
	JWKS       *JWKSHandler
	Metrics    fiber.Handler
}

// Middleware holds the per-request chain pieces built in main
type Middleware struct {
	Tenant     fiber.Handler
	Auth       fiber.Handler
	Access     fiber.Handler
	LoginLimit fiber.Handler
	Guard      *service.Guard
}

func SetupRoutes(app *fiber.App, h Handlers, mw Middleware) {
	// Health checks (public, any host)
	app.Get("/health", h.Health.Health)
	app.Get("/ready", h.Health.Ready)
	app.Get("/.well-known/jwks.json", h.JWKS.GetJWKS)

	if h.Metrics != nil {
		app.Get("/metrics", mw.Tenant, middleware.RequirePortal(tenancy.PortalStaff), h.Metrics)
	}

	// every API route runs on a resolved host
	api := app.Group("/api/v1", mw.Tenant)

	// signed in and allowed on this host
	protected := func(handlers ...fiber.Handler) []fiber.Handler {
		return append([]fiber.Handler{mw.Auth, mw.Access}, handlers...)
	}
	can := func(action policy.Action) fiber.Handler {
		return middleware.RequirePermission(mw.Guard, action)
	}

	// Auth
	api.Post("/auth/login", mw.LoginLimit, h.Auth.Login)
	api.Post("/auth/refresh", mw.LoginLimit, h.Auth.RefreshToken)
	api.Post("/auth/logout", mw.Auth, h.Auth.Logout)

	// First product owner, admin root only
	api.Get("/setup/status", middleware.RequirePortal(tenancy.PortalAdmin), h.Setup.Status)
	api.Post("/setup/product-owner", middleware.RequirePortal(tenancy.PortalAdmin), mw.LoginLimit, h.Setup.CreateProductOwner)

	// Invitations: preview and accept are public, the token is the credential
	api.Get("/invitations", protected(h.Invitation.List)...)
	api.Post("/invitations", protected(h.Invitation.Create)...)
	api.Post("/invitations/accept", mw.LoginLimit, h.Invitation.Accept)
	api.Get("/invitations/:token", h.Invitation.Preview)
	api.Delete("/invitations/:id", protected(h.Invitation.Revoke)...)

	// Current principal and its portal's users
	users := api.Group("/users", mw.Auth, mw.Access)
	users.Get("/me", h.User.GetMe)
	users.Get("/me/permissions", h.User.GetMyPermissions)
	users.Get("/me/sessions", h.Session.GetMySessions)
	users.Delete("/me/sessions/:id", h.Session.DeleteSession)
	users.Post("/me/password", h.Auth.ChangePassword)
	users.Get("/", h.User.List)
	users.Get("/:id", h.User.Get)
	users.Post("/:id/status", can(policy.UsersManage), h.User.SetStatus)

	// Company administration (admin root)
	admin := api.Group("/admin",
		middleware.RequirePortal(tenancy.PortalAdmin), mw.Auth, mw.Access, can(policy.CompaniesManage))
	admin.Post("/companies", h.Company.Create)
	admin.Get("/companies", h.Company.List)
	admin.Get("/companies/:id", h.Company.Get)
	admin.Patch("/companies/:id", h.Company.Update)
	admin.Post("/companies/:id/status", h.Company.SetStatus)

	// Sales pipeline (staff root)
	clients := api.Group("/clients", middleware.RequirePortal(tenancy.PortalStaff), mw.Auth, mw.Access)
	clients.Get("/", can(policy.ClientsView), h.Pipeline.ListClients)
	clients.Post("/", can(policy.ClientsManage), h.Pipeline.CreateClient)
	clients.Get("/:id", can(policy.ClientsView), h.Pipeline.GetClient)
	clients.Put("/:id", can(policy.ClientsManage), h.Pipeline.UpdateClient)
	clients.Delete("/:id", can(policy.ClientsManage), h.Pipeline.DeleteClient)

	deals := api.Group("/deals", middleware.RequirePortal(tenancy.PortalStaff), mw.Auth, mw.Access)
	deals.Get("/", can(policy.DealsView), h.Pipeline.ListDeals)
	deals.Post("/", can(policy.DealsManage), h.Pipeline.CreateDeal)
	deals.Get("/board", can(policy.DealsView), h.Pipeline.Board)
	deals.Get("/:id", can(policy.DealsView), h.Pipeline.GetDeal)
	deals.Patch("/:id", can(policy.DealsManage), h.Pipeline.UpdateDeal)
	deals.Post("/:id/move", can(policy.DealsManage), h.Pipeline.MoveDeal)
	deals.Delete("/:id", can(policy.DealsManage), h.Pipeline.DeleteDeal)

	// Projects and tasks (staff root and company hosts)
	projects := api.Group("/projects",
		middleware.RequirePortal(tenancy.PortalStaff, tenancy.PortalCompany), mw.Auth, mw.Access, can(policy.ProjectsView))
	projects.Get("/", h.Project.ListProjects)
	projects.Post("/", can(policy.ProjectsManage), h.Project.CreateProject)
	projects.Get("/:id", h.Project.GetProject)
	projects.Patch("/:id", can(policy.ProjectsManage), h.Project.UpdateProject)
	projects.Delete("/:id", can(policy.ProjectsManage), h.Project.DeleteProject)
	projects.Get("/:id/tasks", h.Project.ListTasks)
	projects.Post("/:id/tasks", can(policy.TasksManage), h.Project.CreateTask)

	tasks := api.Group("/tasks",
		middleware.RequirePortal(tenancy.PortalStaff, tenancy.PortalCompany), mw.Auth, mw.Access)
	tasks.Patch("/:id", h.Project.UpdateTask)
	tasks.Delete("/:id", can(policy.TasksManage), h.Project.DeleteTask)
}
