package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"workshop/pkg/claims"
	"workshop/pkg/token"
)

const unauthorizedBody = `{"message":"unauthorized"}`

// Verifier is satisfied by *token.Authenticator.
type Verifier interface {
	Verify(raw string) (claims.Identity, error)
}

// CheckToken admits requests carrying a valid bearer token and stores the
// resulting identity in the request context.
func CheckToken(auth Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				raw = strings.TrimPrefix(h, "Bearer ")
			}

			identity, err := auth.Verify(raw)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, token.ErrMissing) {
					reason = "missing"
				}
				logger.Warn("request rejected", "reason", reason, "path", r.URL.Path, "error", err)
				unauthorized(w, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(claims.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireElevated must sit behind CheckToken.
func RequireElevated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := claims.FromContext(r.Context())
		if !ok {
			unauthorized(w, http.StatusUnauthorized)
			return
		}
		if !identity.Role.Elevated() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(unauthorizedBody))
}
