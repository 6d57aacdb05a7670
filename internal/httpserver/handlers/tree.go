package handlers

import (
	"net/http"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/mw"
)

type treeResponse struct {
	Tree domain.Tree `json:"tree"`
}

// Tree returns the session's full category tree.
func Tree(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		writeJSON(w, http.StatusOK, treeResponse{Tree: sess.Library.Snapshot()})
	}
}

// Search returns the filtered view for ?q=. An empty query yields the
// full tree.
func Search(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		query := r.URL.Query().Get("q")
		writeJSON(w, http.StatusOK, treeResponse{Tree: sess.Library.Search(query)})
	}
}
