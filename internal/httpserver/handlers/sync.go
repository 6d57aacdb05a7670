package handlers

import (
	"net/http"

	"github.com/pbataille/shelf/internal/domain"
	"github.com/pbataille/shelf/internal/httpserver/deps"
	"github.com/pbataille/shelf/internal/httpserver/mw"
	"github.com/pbataille/shelf/internal/session"
)

type syncStatusResponse struct {
	Configured   bool   `json:"configured"`
	State        string `json:"state"`
	LastSyncTime int64  `json:"lastSyncTime,omitempty"`
}

type syncConflictResponse struct {
	Conflict           bool        `json:"conflict"`
	RemoteTree         domain.Tree `json:"remoteTree"`
	RemoteLastModified int64       `json:"remoteLastModified"`
}

type syncRequest struct {
	Resolution string `json:"resolution"`
}

func requireSyncConfigured(w http.ResponseWriter, d deps.Deps) bool {
	if d.SyncConfigured {
		return true
	}
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Error: "cloud sync is not configured on this server",
	})
	return false
}

// SyncEnable turns cloud mirroring on, pulling first. A populated remote
// document conflicts with the local tree until the client picks a side.
func SyncEnable(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSyncConfigured(w, d) {
			return
		}
		sess := mw.SessionFrom(r.Context())

		var req syncRequest
		if r.ContentLength > 0 && !decodeBody(w, r, &req) {
			return
		}

		conflict, err := sess.Sync.SyncNow(r.Context(), req.Resolution)
		if err != nil {
			writeError(w, d, err)
			return
		}
		if conflict != nil {
			writeJSON(w, http.StatusConflict, syncConflictResponse{
				Conflict:           true,
				RemoteTree:         conflict.RemoteTree,
				RemoteLastModified: conflict.RemoteLastModified,
			})
			return
		}
		writeJSON(w, http.StatusOK, statusPayload(d, sess))
	}
}

// SyncDisable detaches the session from the remote document store.
func SyncDisable(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSyncConfigured(w, d) {
			return
		}
		sess := mw.SessionFrom(r.Context())
		sess.Sync.Disable()
		writeJSON(w, http.StatusOK, statusPayload(d, sess))
	}
}

// SyncNow forces an immediate push, or runs the enable handshake when
// sync is off.
func SyncNow(d deps.Deps) http.HandlerFunc {
	return SyncEnable(d)
}

// SyncStatus reports whether the session is mirroring and when it last
// reconciled.
func SyncStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := mw.SessionFrom(r.Context())
		writeJSON(w, http.StatusOK, statusPayload(d, sess))
	}
}

func statusPayload(d deps.Deps, sess *session.Session) syncStatusResponse {
	return syncStatusResponse{
		Configured:   d.SyncConfigured,
		State:        sess.Sync.State().String(),
		LastSyncTime: sess.Sync.LastSyncTime(),
	}
}
