package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/handlers"
	"github.com/pbataille/shelf/internal/httpserver/mw"
)

func init() { Register(registerSnapshot) }

func registerSnapshot(r chi.Router, d deps.Deps) {
	authed := r.With(mw.RequireSession(d.Sessions, d.Logger))
	authed.Get("/api/export", handlers.Export(d))
	authed.Post("/api/import", handlers.Import(d))
}
