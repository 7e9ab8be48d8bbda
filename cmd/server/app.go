package main

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gestion-immeubles/auth"
	"gestion-immeubles/internal/handlers"
	"gestion-immeubles/internal/policy"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux    *http.ServeMux
	tokens *auth.Service
	guard  *policy.Guard
}

// NewApp creates a new application with all routes configured.
func NewApp(db *gorm.DB, tokens *auth.Service, guard *policy.Guard, log *zap.Logger) *App {
	app := &App{
		mux:    http.NewServeMux(),
		tokens: tokens,
		guard:  guard,
	}

	ah := handlers.NewAuthHandler(db, tokens, log)
	ih := handlers.NewImmeubleHandler(db, log)
	ph := handlers.NewProprietaireHandler(db, log)
	uh := handlers.NewUserHandler(db, tokens, log)

	// ─────────────────────────────────────────────────────────────────────────
	// Public routes
	// ─────────────────────────────────────────────────────────────────────────
	app.mux.HandleFunc("POST /api/register", ah.Register)
	app.mux.HandleFunc("POST /api/login", ah.Login)

	// ─────────────────────────────────────────────────────────────────────────
	// Authenticated routes
	// ─────────────────────────────────────────────────────────────────────────
	app.mux.Handle("POST /api/logout", app.authed(ah.Logout))
	app.mux.Handle("GET /api/user", app.authed(ah.Me))
	app.mux.Handle("GET /api/users/{id}", app.authed(uh.Show))
	app.mux.Handle("PUT /api/users/{id}", app.authed(uh.Update))
	app.mux.Handle("DELETE /api/users/{id}", app.authed(uh.Destroy))

	// ─────────────────────────────────────────────────────────────────────────
	// Syndic-only routes
	// ─────────────────────────────────────────────────────────────────────────
	app.mux.Handle("GET /api/immeubles", app.syndic(ih.List))
	app.mux.Handle("GET /api/immeubles/auth-syndic", app.syndic(ih.AuthSyndic))
	app.mux.Handle("POST /api/immeubles", app.syndic(ih.Create))
	app.mux.Handle("PUT /api/immeubles/{id}", app.syndic(ih.Update))
	app.mux.Handle("DELETE /api/immeubles/{id}", app.syndic(ih.Delete))

	app.mux.Handle("GET /api/proprietaires", app.syndic(ph.List))
	app.mux.Handle("GET /api/proprietaires/export", app.syndic(ph.Export))
	app.mux.Handle("GET /api/proprietaires/{id}", app.syndic(ph.Show))
	app.mux.Handle("POST /api/proprietaires", app.syndic(ph.Create))
	app.mux.Handle("PUT /api/proprietaires/{id}", app.syndic(ph.Update))
	app.mux.Handle("DELETE /api/proprietaires/{id}", app.syndic(ph.Destroy))

	return app
}

// ServeHTTP implements http.Handler. The token middleware runs first so every
// route sees the authenticated user id when a valid bearer token is present.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.tokens.Middleware(a.mux).ServeHTTP(w, r)
}

// authed requires a valid token and resolves the principal.
func (a *App) authed(h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(a.guard.LoadPrincipal(h))
}

// syndic additionally requires the syndic role.
func (a *App) syndic(h http.HandlerFunc) http.Handler {
	return auth.RequireAuth(a.guard.LoadPrincipal(a.guard.RequireSyndic(h)))
}
