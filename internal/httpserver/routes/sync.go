package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/handlers"
	"github.com/pbataille/shelf/internal/httpserver/mw"
)

func init() { Register(registerSync) }

func registerSync(r chi.Router, d deps.Deps) {
	authed := r.With(mw.RequireSession(d.Sessions, d.Logger))
	authed.Post("/api/sync/enable", handlers.SyncEnable(d))
	authed.Post("/api/sync/disable", handlers.SyncDisable(d))
	authed.Post("/api/sync/now", handlers.SyncNow(d))
	authed.Get("/api/sync/status", handlers.SyncStatus(d))
}
