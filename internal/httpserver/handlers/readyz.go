package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/logger"
)

type readyzResponse struct {
	Ready bool `json:"ready"`
}

// Readyz reports readiness. The server is ready once its local store is
// reachable.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				d.Logger.Warn("readiness probe failed", logger.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(readyzResponse{Ready: false})
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(readyzResponse{Ready: true})
	}
}
