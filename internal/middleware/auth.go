package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pliu/cipherchat/internal/auth"
	"github.com/pliu/cipherchat/internal/store"
)

type contextKey string

// UserKey holds the authenticated identity name in the request context.
const UserKey contextKey = "user"

// Auth verifies the bearer token from the "token" header: signature
// first (no store hit for forged tokens), then the store lookup that
// resolves it to an identity.
func Auth(s store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("token")
			if token == "" {
				unauthorized(w)
				return
			}

			if err := auth.VerifyToken(token); err != nil {
				unauthorized(w)
				return
			}

			user, err := s.GetUserByToken(token)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{"message": "Invalid token"})
}

// UserName extracts the authenticated identity set by Auth.
func UserName(r *http.Request) string {
	name, _ := r.Context().Value(UserKey).(string)
	return name
}
