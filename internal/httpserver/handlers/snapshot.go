package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/mw"
	"github.com/pbataille/shelf/internal/logger"
)

// Export serves the whole tree as a downloadable JSON file.
func Export(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())

		data, err := sess.Library.ExportSnapshot()
		if err != nil {
			writeError(w, d, err)
			return
		}

		filename := fmt.Sprintf("bookmarks-%s.json", time.Now().Format("2006-01-02"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			d.Logger.Warn("export write failed", logger.Error(err))
		}
	}
}

// Import replaces the whole tree from an uploaded snapshot. A malformed
// snapshot is rejected without touching the current tree.
func Import(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, d, domain.NewValidationError("request body unreadable or too large"))
			return
		}

		if err := sess.Library.ImportSnapshot(r.Context(), body); err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, treeResponse{Tree: sess.Library.Snapshot()})
	}
}
