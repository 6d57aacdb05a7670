package handlers

import (
	"net/http"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/mw"
	"github.com/pbataille/shelf/internal/logger"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token    string      `json:"token"`
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Tree     domain.Tree `json:"tree"`
}

// Register creates an account and opens a session for it.
func Register(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		auth, err := d.Identity.Register(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, d, err)
			return
		}

		sess, err := d.Sessions.Open(r.Context(), auth.Token, auth.UserID, auth.Username)
		if err != nil {
			writeError(w, d, err)
			return
		}

		writeJSON(w, http.StatusCreated, authResponse{
			Token:    sess.Token,
			UserID:   sess.UserID,
			Username: sess.Username,
			Tree:     sess.Library.Snapshot(),
		})
	}
}

// Login verifies credentials and opens a session.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		auth, err := d.Identity.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, d, err)
			return
		}

		sess, err := d.Sessions.Open(r.Context(), auth.Token, auth.UserID, auth.Username)
		if err != nil {
			writeError(w, d, err)
			return
		}

		writeJSON(w, http.StatusOK, authResponse{
			Token:    sess.Token,
			UserID:   sess.UserID,
			Username: sess.Username,
			Tree:     sess.Library.Snapshot(),
		})
	}
}

// Logout clears the session marker and tears the runtime session down.
// The user record and dataset stay behind for the next login.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())

		// The marker may already have expired; only a present one needs
		// deleting.
		if d.Identity.IsLoggedIn(r.Context(), sess.Token) {
			if err := d.Identity.Logout(r.Context(), sess.Token); err != nil {
				d.Logger.Warn("failed to clear session marker",
					logger.String("user_id", sess.UserID),
					logger.Error(err))
			}
		}
		d.Sessions.Close(sess.Token)

		w.WriteHeader(http.StatusNoContent)
	}
}

type meResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Me returns the logged-in user, resolved back through the session
// marker. A marker that expired while the runtime session stayed alive
// answers 401.
func Me(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())

		user, err := d.Identity.CurrentUser(r.Context(), sess.Token)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, meResponse{
			UserID:   user.ID,
			Username: user.Username,
		})
	}
}
