package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func (a *API) isAdmin(token string) bool {
	if a.config.AdminToken == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.config.AdminToken)) == 1
}

// requireAuth guards mutating routes. Auth is disabled entirely when no
// admin token is configured, which keeps local development friction-free.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.config.AdminToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, errors.New("bearer token required"))
			return
		}
		if a.isAdmin(token) {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		switch err := a.tokens.Validate(ctx, token); {
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
			respondError(w, http.StatusUnauthorized, err)
			return
		case err != nil:
			respondError(w, http.StatusInternalServerError, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}
