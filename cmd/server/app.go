package main

import (
	"net/http"
	"os"

	"github.com/diewo77/training-tracker/auth"
	"github.com/diewo77/training-tracker/gate"
	"github.com/diewo77/training-tracker/internal/policy"
	"github.com/diewo77/training-tracker/view"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux       *http.ServeMux
	routerCfg *policy.RouterConfig
}

// NewApp creates a new application with all routes configured.
func NewApp(routerCfg *policy.RouterConfig) *App {
	app := &App{
		mux:       http.NewServeMux(),
		routerCfg: routerCfg,
	}
	// Resolver callbacks keep policy types out of the view package.
	view.SetCanProfileResolver(func(r *http.Request, resource, action string) bool {
		return routerCfg.AuthGate.CanProfile(r.Context(), gate.Action(action), resource)
	})
	view.SetIsAdminResolver(func(r *http.Request) bool {
		return routerCfg.AuthGate.IsAdmin(r.Context())
	})
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := auth.Middleware(a.routerCfg.AuthGate.Middleware(a.mux))
	handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Public routes (no auth required)
	// ─────────────────────────────────────────────────────────────────────────
	ah := a.routerCfg.AuthHandler

	a.mux.HandleFunc("GET /login", ah.Login)
	a.mux.HandleFunc("POST /login", ah.Login)
	a.mux.HandleFunc("GET /logout", ah.Logout)

	// ─────────────────────────────────────────────────────────────────────────
	// Training forms
	// ─────────────────────────────────────────────────────────────────────────
	fh := a.routerCfg.FormHandler

	a.mux.Handle("GET /{$}", a.requireAuth(http.HandlerFunc(fh.Home)))
	a.mux.Handle("GET /success", a.requireAuth(http.HandlerFunc(fh.Success)))
	a.mux.Handle("GET /leaderboard",
		a.requireAuth(a.requirePermission(policy.ResourceForm, gate.ActionList)(http.HandlerFunc(fh.Leaderboard))))

	a.mux.Handle("GET /new",
		a.requireAuth(a.requirePermission(policy.ResourceForm, gate.ActionCreate)(http.HandlerFunc(fh.New))))
	a.mux.Handle("POST /submit",
		a.requireAuth(a.requirePermission(policy.ResourceForm, gate.ActionCreate)(http.HandlerFunc(fh.Submit))))
	a.mux.Handle("GET /list",
		a.requireAuth(a.requirePermission(policy.ResourceForm, gate.ActionList)(http.HandlerFunc(fh.List))))
	a.mux.Handle("GET /my_submissions",
		a.requireAuth(a.requirePermission(policy.ResourceForm, gate.ActionList)(http.HandlerFunc(fh.MySubmissions))))

	// Ownership is checked in the handlers once the form is loaded.
	a.mux.Handle("GET /view/{id}", a.requireAuth(http.HandlerFunc(fh.View)))
	a.mux.Handle("GET /edit/{id}", a.requireAuth(http.HandlerFunc(fh.Edit)))
	a.mux.Handle("POST /edit/{id}", a.requireAuth(http.HandlerFunc(fh.Update)))
	a.mux.Handle("POST /delete/{id}", a.requireAuth(http.HandlerFunc(fh.Delete)))
	a.mux.Handle("POST /recover/{id}", a.requireAuth(http.HandlerFunc(fh.Recover)))

	a.mux.Handle("GET /uploads/{folder}/{filename}", a.requireAuth(http.HandlerFunc(a.routerCfg.UploadHandler.Serve)))

	// ─────────────────────────────────────────────────────────────────────────
	// Lookups
	// ─────────────────────────────────────────────────────────────────────────
	lh := a.routerCfg.LookupHandler
	a.mux.Handle("GET /api/employees",
		a.requireAuth(a.requirePermission(policy.ResourceLookup, gate.ActionView)(http.HandlerFunc(lh.Employees))))
	a.mux.Handle("GET /api/lookup/{entity}",
		a.requireAuth(a.requirePermission(policy.ResourceLookup, gate.ActionView)(http.HandlerFunc(lh.Entity))))

	// ─────────────────────────────────────────────────────────────────────────
	// Admin routes
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /approve/{id}", a.requireAdmin(http.HandlerFunc(fh.Approve)))

	eh := a.routerCfg.ExportHandler
	a.mux.Handle("GET /export_claim5_options", a.requireAdmin(http.HandlerFunc(eh.Options)))
	a.mux.Handle("GET /api/export_claim5_options", a.requireAdmin(http.HandlerFunc(eh.Options)))
	a.mux.Handle("GET /export_claim5", a.requireAdmin(http.HandlerFunc(eh.Export)))
	a.mux.Handle("POST /export_claim5", a.requireAdmin(http.HandlerFunc(eh.Export)))

	adh := a.routerCfg.AdminHandler
	a.mux.Handle("GET /manage_admins", a.requireAdmin(http.HandlerFunc(adh.Manage)))
	a.mux.Handle("POST /manage_admins", a.requireAdmin(http.HandlerFunc(adh.Manage)))
	a.mux.Handle("POST /update_admin_email_preference", a.requireAdmin(http.HandlerFunc(adh.UpdateEmailPreference)))

	// ─────────────────────────────────────────────────────────────────────────
	// Static files
	// ─────────────────────────────────────────────────────────────────────────
	a.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir()))))
}

func staticDir() string {
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		return dir
	}
	return "static"
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

// requireAuth redirects anonymous users to /login.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return auth.RequireAuth(next)
}

// requireAdmin requires a logged in user listed in the admins table.
func (a *App) requireAdmin(next http.Handler) http.Handler {
	return auth.RequireAuth(a.routerCfg.AuthGate.RequireAdmin()(next))
}

// requirePermission wraps a handler to require specific resource permission.
func (a *App) requirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return a.routerCfg.AuthGate.RequirePermission(resourceType, action)
}
