package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/logger"
)

const maxBodyBytes = 2 << 20 // import payloads are whole trees, cap them

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain error kinds onto HTTP statuses. Nothing here is
// fatal; every failure returns control to the client with a status it
// can display.
func writeError(w http.ResponseWriter, d deps.Deps, err error) {
	var (
		verr *domain.ValidationError
		cerr *domain.ConflictError
		aerr *domain.AuthError
		serr *domain.StorageError
		yerr *domain.SyncError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
	case errors.As(err, &aerr):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: aerr.Error()})
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: cerr.Error()})
	case errors.As(err, &serr):
		d.Logger.Error("storage failure", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "storage failure, your last change may not be saved"})
	case errors.As(err, &yerr):
		d.Logger.Warn("sync failure", logger.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "cloud sync failed"})
	default:
		d.Logger.Error("unhandled error", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeNotFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: what + " not found"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}
