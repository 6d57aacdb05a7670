package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/handlers"
	"github.com/pbataille/shelf/internal/httpserver/mw"
)

func init() { Register(registerCategories) }

func registerCategories(r chi.Router, d deps.Deps) {
	authed := r.With(mw.RequireSession(d.Sessions, d.Logger))
	authed.Post("/api/categories", handlers.CreateCategory(d))
	authed.Put("/api/categories/{categoryID}", handlers.UpdateCategory(d))
	authed.Delete("/api/categories/{categoryID}", handlers.DeleteCategory(d))
	authed.Post("/api/categories/{categoryID}/move", handlers.MoveCategory(d))
}
