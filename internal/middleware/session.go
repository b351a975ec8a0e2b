// Package middleware provides HTTP middlewares for session authentication
// and request logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/atinyakov/diecompare/internal/session"
)

type ctxKey string

const sessionKey ctxKey = "session"

// SessionLookup resolves a bearer token to its live session.
type SessionLookup interface {
	Get(token string) (*session.Session, error)
}

// SessionAuth is a middleware that requires a valid session token.
//
// The token is read from the "Authorization: Bearer <token>" header. Paths
// listed in open are served without a session so callers can create one.
// On success the session is stored in the request context.
func SessionAuth(lookup SessionLookup, open ...string) func(http.Handler) http.Handler {
	bypass := make(map[string]struct{}, len(open))
	for _, p := range open {
		bypass[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bypass[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "no session token provided", http.StatusUnauthorized)
				return
			}
			s, err := lookup.Get(token)
			if err != nil {
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests whose session has no signed-in account.
// It must run after SessionAuth.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := SessionFromContext(r.Context())
		if s == nil || s.User() == "" {
			http.Error(w, "login required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext returns the session stored by SessionAuth, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
