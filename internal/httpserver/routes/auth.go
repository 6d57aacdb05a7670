package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/handlers"
	"github.com/pbataille/shelf/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	limited := r.With(mw.RateLimit(d.AuthRateLimit))
	limited.Post("/api/auth/register", handlers.Register(d))
	limited.Post("/api/auth/login", handlers.Login(d))

	authed := r.With(mw.RequireSession(d.Sessions, d.Logger))
	authed.Post("/api/auth/logout", handlers.Logout(d))
	authed.Get("/api/auth/me", handlers.Me(d))
}
