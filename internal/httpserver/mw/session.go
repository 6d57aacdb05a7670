package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/pbataille/shelf/internal/logger"
	"github.com/pbataille/shelf/internal/session"
)

type ctxKey int

const sessionKey ctxKey = iota

// SessionResolver turns a bearer token into a live session.
// *session.Manager satisfies it.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// RequireSession rejects requests without a resolvable bearer token and
// stashes the session in the request context for handlers.
func RequireSession(resolver SessionResolver, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			sess, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				log.Debug("session resolution failed",
					logger.String("path", r.URL.Path),
					logger.Error(err))
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom returns the session stashed by RequireSession, or nil.
func SessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey).(*session.Session)
	return sess
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
