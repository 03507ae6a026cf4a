package middleware

import (
	"context"
	"net/http"
	"strings"

	"librotek/utils"
)

type ctxKey string

const UserCtxKey ctxKey = "user"

// Auth checks a bearer token from the Authorization header or, failing
// that, a "token" cookie, and stores the parsed claims in the request
// context.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string

		auth := r.Header.Get("Authorization")
		if auth != "" {
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = parts[1]
			}
		}

		if token == "" {
			if cookie, err := r.Cookie("token"); err == nil {
				token = cookie.Value
			}
		}

		if token == "" {
			http.Error(w, "missing Authorization header or token cookie", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserCtxKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a handler behind a role carried in the claims.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if claims.Role != role {
				http.Error(w, "forbidden: insufficient role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFrom extracts the authenticated claims stored by Auth.
func ClaimsFrom(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(UserCtxKey).(*utils.Claims)
	return claims, ok
}
