package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fxgate/fxgate/internal/api"
)

type contextKey string

const AdminClaimsKey contextKey = "admin_claims"

// RequireAdmin rejects requests without a valid admin bearer token and logs
// the operator behind every accepted one.
func RequireAdmin(mgr *AdminTokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="fxgate-admin"`)
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := mgr.Validate(strings.TrimSpace(token))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="fxgate-admin", error="invalid_token"`)
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			slog.Info("admin request",
				"operator", claims.Operator,
				"token_id", claims.ID,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := context.WithValue(r.Context(), AdminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetAdminClaims(ctx context.Context) *AdminClaims {
	claims, _ := ctx.Value(AdminClaimsKey).(*AdminClaims)
	return claims
}
