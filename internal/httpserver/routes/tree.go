package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/handlers"
	"github.com/pbataille/shelf/internal/httpserver/mw"
)

func init() { Register(registerTree) }

func registerTree(r chi.Router, d deps.Deps) {
	authed := r.With(mw.RequireSession(d.Sessions, d.Logger))
	authed.Get("/api/tree", handlers.Tree(d))
	authed.Get("/api/search", handlers.Search(d))
}
