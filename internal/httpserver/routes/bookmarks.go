package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/handlers"
	"github.com/pbataille/shelf/internal/httpserver/mw"
)

func init() { Register(registerBookmarks) }

func registerBookmarks(r chi.Router, d deps.Deps) {
	authed := r.With(mw.RequireSession(d.Sessions, d.Logger))
	authed.Post("/api/categories/{categoryID}/bookmarks", handlers.CreateBookmark(d))
	authed.Put("/api/categories/{categoryID}/bookmarks/{bookmarkID}", handlers.UpdateBookmark(d))
	authed.Delete("/api/categories/{categoryID}/bookmarks/{bookmarkID}", handlers.DeleteBookmark(d))
	authed.Post("/api/categories/{categoryID}/bookmarks/{bookmarkID}/move", handlers.MoveBookmark(d))
}
