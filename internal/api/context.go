package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/xwp/ga4-extensions/internal/content"
	"github.com/xwp/ga4-extensions/internal/storage"
)

const SessionCookie = "session"

type ctxKey struct{}

type SessionStore interface {
	UserBySession(ctx context.Context, token string) (*content.User, error)
}

// CurrentUser resolves the visitor from the session cookie. Unknown or
// missing sessions are anonymous.
func CurrentUser(sessions SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookie)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			u, err := sessions.UserBySession(r.Context(), c.Value)
			if err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					log.Error().Err(err).Msg("session lookup")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func WithUser(ctx context.Context, u *content.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns nil for anonymous requests.
func UserFrom(ctx context.Context) *content.User {
	u, _ := ctx.Value(ctxKey{}).(*content.User)
	return u
}

// RequireRole answers 403 unless the visitor holds role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !UserFrom(r.Context()).HasRole(role) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
