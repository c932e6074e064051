package mw

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/perchkeep/perch/internal/logger"
	"github.com/perchkeep/perch/internal/session"
)

// SessionCookie is the name of the opaque session token cookie.
const SessionCookie = "perch_session"

type sessionCtxKey struct{}

// RequireSession rejects requests without a valid session cookie and
// injects the resolved session into the request context.
func RequireSession(sessions session.Manager, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil {
				log.Error("session lookup failed", logger.Error(err))
				unauthorized(w)
				return
			}
			if sess == nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), sessionCtxKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom returns the session injected by RequireSession, or nil.
func SessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionCtxKey{}).(*session.Session)
	return sess
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
