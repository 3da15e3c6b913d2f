package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/courier-portal/internal/api/http/handlers"
	"github.com/spec-kit/courier-portal/internal/auth"
	"github.com/spec-kit/courier-portal/internal/domain"
	"github.com/spec-kit/courier-portal/internal/guard"
	"github.com/spec-kit/courier-portal/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Session *handlers.SessionHandler
	Proxy   *handlers.ProxyHandler
	Pages   *handlers.PagesHandler
	Tabs    *auth.SessionMiddleware
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Probe and metrics routes come first so
// they never mint tab sessions.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Use(cfg.Tabs.Handle)

	sessionGroup := app.Group("/session")
	sessionGroup.Post("/login/:variant", cfg.Session.Login)
	sessionGroup.Post("/register", cfg.Session.Register)
	sessionGroup.Post("/refresh", cfg.Session.Refresh)
	sessionGroup.Post("/logout", cfg.Session.Logout)
	sessionGroup.Get("/me", cfg.Session.Me)
	sessionGroup.Get("/notifications", cfg.Session.Notifications)
	sessionGroup.Patch("/profile", auth.RequireAuthenticated(), cfg.Session.UpdateProfile)

	app.All("/api/*", cfg.Proxy.Forward)

	// login entries are registered ahead of their guarded section
	app.Get(guard.AdminLogin, cfg.Pages.Login("admin"))
	app.Get(guard.CustomerLogin, cfg.Pages.Login("customer"))
	app.Get(guard.DeliveryAgentLogin, cfg.Pages.Login("delivery-agent"))
	app.Get(guard.StaffEntry, cfg.Pages.Login("staff"))

	section(app, "/admin", cfg.Pages, domain.IdentityAdmin)
	section(app, "/staff", cfg.Pages, domain.IdentityStaff, domain.IdentityAdmin)
	section(app, "/customer", cfg.Pages, domain.IdentityCustomer)
	section(app, "/delivery-agent", cfg.Pages, domain.IdentityDeliveryAgent)
}

func section(app *fiber.App, prefix string, pages *handlers.PagesHandler, roles ...domain.IdentityType) {
	group := app.Group(prefix, guard.Protect(auth.SessionState, roles...))
	group.Get("/*", pages.Section(prefix[1:]))
}
