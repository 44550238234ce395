package api

import (
	"context"
	"net/http"
	"strings"

	"storefront-catalog-service/internal/auth"
)

type contextKey string

const principalKey contextKey = "principal"

// RequireAuth extracts and verifies the bearer token, stashing the resulting
// Principal in the request context. Missing or invalid credentials end the
// request with 401; admin enforcement happens later, in the catalog service.
func RequireAuth(authSvc auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respondWithError(w, http.StatusUnauthorized, "No token provided")
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")
			if token == header || token == "" {
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization header")
				return
			}

			principal, err := authSvc.Authenticate(r.Context(), token)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom returns the verified principal put there by RequireAuth.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok
}
