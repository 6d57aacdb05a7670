package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/mw"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type categoryResponse struct {
	Category domain.Category `json:"category"`
	Tree     domain.Tree     `json:"tree"`
}

type moveRequest struct {
	Index int `json:"index"`
}

// CreateCategory appends a category to the end of the tree.
func CreateCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())

		var req categoryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			writeError(w, d, domain.NewValidationError("category name is required"))
			return
		}

		cat, err := sess.Library.AddCategory(r.Context(), req.Name, req.Color)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusCreated, categoryResponse{
			Category: cat,
			Tree:     sess.Library.Snapshot(),
		})
	}
}

// UpdateCategory rewrites a category's name and color.
func UpdateCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		id := chi.URLParam(r, "categoryID")

		var req categoryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			writeError(w, d, domain.NewValidationError("category name is required"))
			return
		}

		ok, err := sess.Library.UpdateCategory(r.Context(), id, req.Name, req.Color)
		if !ok {
			writeNotFound(w, "category")
			return
		}
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, treeResponse{Tree: sess.Library.Snapshot()})
	}
}

// DeleteCategory removes a category and every bookmark it owns.
func DeleteCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		id := chi.URLParam(r, "categoryID")

		ok, err := sess.Library.DeleteCategory(r.Context(), id)
		if !ok {
			writeNotFound(w, "category")
			return
		}
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, treeResponse{Tree: sess.Library.Snapshot()})
	}
}

// MoveCategory reorders a category (drag-to-reorder).
func MoveCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		id := chi.URLParam(r, "categoryID")

		var req moveRequest
		if !decodeBody(w, r, &req) {
			return
		}

		ok, err := sess.Library.MoveCategory(r.Context(), id, req.Index)
		if !ok {
			writeNotFound(w, "category")
			return
		}
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, treeResponse{Tree: sess.Library.Snapshot()})
	}
}
