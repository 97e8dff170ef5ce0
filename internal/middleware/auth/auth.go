// Package auth resolves the API key in the Authorization header to a user
// and gates admin-only routes.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"financify/internal/cache"
	"financify/internal/core"
	"financify/internal/log"
	"financify/internal/middleware"
)

const (
	MsgMissingKey = "Please provide an API key in the Authorization header of your request"
	MsgInvalidKey = "API key not valid"
	MsgNotAdmin   = "server not running in admin mode"
)

type ctxKey struct{}

// UserLookup finds the owner of an API key. It returns an error wrapping
// core.ErrNotFound for unknown keys.
type UserLookup interface {
	GetUserByAPIKey(ctx context.Context, apiKey string) (core.User, error)
}

// Authenticator validates API keys, caching resolved users.
type Authenticator struct {
	users  UserLookup
	cache  cache.Cache[core.User]
	logger *log.Logger
}

// New returns an Authenticator. cache may be nil to disable caching.
func New(users UserLookup, c cache.Cache[core.User], logger *log.Logger) *Authenticator {
	return &Authenticator{
		users:  users,
		cache:  c,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// APIKey returns the key carried by r. A "Bearer " prefix is accepted.
func APIKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(key, "Bearer "); ok {
		key = strings.TrimSpace(after)
	}
	return key
}

// Authenticate resolves key to its user.
func (a *Authenticator) Authenticate(ctx context.Context, key string) (core.User, error) {
	if a.cache != nil {
		if u, ok := a.cache.Get(key); ok {
			return u, nil
		}
	}
	u, err := a.users.GetUserByAPIKey(ctx, key)
	if err != nil {
		return core.User{}, err
	}
	if a.cache != nil {
		a.cache.Set(key, u)
	}
	return u, nil
}

// Middleware rejects requests without a valid key and stores the user in
// the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := APIKey(r)
		if key == "" {
			middleware.WriteError(w, http.StatusBadRequest, MsgMissingKey)
			return
		}

		u, err := a.Authenticate(r.Context(), key)
		if errors.Is(err, core.ErrNotFound) {
			a.logger.WarnContext(r.Context(), "Rejected API key",
				log.FieldPath, r.URL.Path,
				log.FieldErrorType, log.ErrorTypeAuth)
			middleware.WriteError(w, http.StatusUnauthorized, MsgInvalidKey)
			return
		}
		if err != nil {
			a.logger.ErrorContext(r.Context(), "API key lookup failed",
				log.FieldError, err.Error(),
				log.FieldErrorType, log.ErrorTypeDatabase)
			middleware.WriteError(w, http.StatusInternalServerError, "internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// AdminOnly rejects every request with 403 unless enabled.
func AdminOnly(enabled bool) middleware.Func {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				middleware.WriteError(w, http.StatusForbidden, MsgNotAdmin)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(core.User)
	return u, ok
}
