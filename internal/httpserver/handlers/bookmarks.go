package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/mw"
)

type bookmarkRequest struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type bookmarkResponse struct {
	Bookmark domain.Bookmark `json:"bookmark"`
	Tree     domain.Tree     `json:"tree"`
}

func (b bookmarkRequest) validate() error {
	if b.Name == "" {
		return domain.NewValidationError("bookmark name is required")
	}
	if b.URL == "" {
		return domain.NewValidationError("bookmark url is required")
	}
	return nil
}

// CreateBookmark appends a bookmark to the end of a category.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		categoryID := chi.URLParam(r, "categoryID")

		var req bookmarkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, d, err)
			return
		}

		bm, ok, err := sess.Library.AddBookmark(r.Context(), categoryID, req.Name, req.URL, req.Description)
		if !ok {
			writeNotFound(w, "category")
			return
		}
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusCreated, bookmarkResponse{
			Bookmark: bm,
			Tree:     sess.Library.Snapshot(),
		})
	}
}

// UpdateBookmark rewrites a bookmark's fields in place.
func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		categoryID := chi.URLParam(r, "categoryID")
		bookmarkID := chi.URLParam(r, "bookmarkID")

		var req bookmarkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, d, err)
			return
		}

		ok, err := sess.Library.UpdateBookmark(r.Context(), categoryID, bookmarkID, req.Name, req.URL, req.Description)
		if !ok {
			writeNotFound(w, "bookmark")
			return
		}
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, treeResponse{Tree: sess.Library.Snapshot()})
	}
}

// DeleteBookmark removes a bookmark from its category.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		categoryID := chi.URLParam(r, "categoryID")
		bookmarkID := chi.URLParam(r, "bookmarkID")

		ok, err := sess.Library.DeleteBookmark(r.Context(), categoryID, bookmarkID)
		if !ok {
			writeNotFound(w, "bookmark")
			return
		}
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, treeResponse{Tree: sess.Library.Snapshot()})
	}
}

// MoveBookmark reorders a bookmark inside its category.
func MoveBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		categoryID := chi.URLParam(r, "categoryID")
		bookmarkID := chi.URLParam(r, "bookmarkID")

		var req moveRequest
		if !decodeBody(w, r, &req) {
			return
		}

		ok, err := sess.Library.MoveBookmark(r.Context(), categoryID, bookmarkID, req.Index)
		if !ok {
			writeNotFound(w, "bookmark")
			return
		}
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, treeResponse{Tree: sess.Library.Snapshot()})
	}
}
