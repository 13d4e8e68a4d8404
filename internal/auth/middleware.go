package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

func writeUnauthorized(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": msg})
}

// Middleware resolves the bearer token, if any, into an Actor on the request
// context. Requests without a token continue as guests; a bad token is rejected.
func Middleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				writeUnauthorized(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}
			actor, err := jwtManager.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeUnauthorized(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole rejects callers whose role is not listed. Must run after Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor.IsGuest() {
				writeUnauthorized(w, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeUnauthorized(w, http.StatusForbidden, "insufficient role")
		})
	}
}
