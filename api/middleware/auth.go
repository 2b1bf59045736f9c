package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/releasehub-billing/api/responses"
	pkgAuth "github.com/angelmondragon/releasehub-billing/pkg/auth"
	"github.com/angelmondragon/releasehub-billing/pkg/config"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
)

// Auth validates an operator bearer token and seeds the request context with the claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithOperator(r.Context(), claims.OperatorID.String(), string(claims.Role))
			if logg != nil {
				ctx = logg.WithOperator(ctx, claims.OperatorID.String(), string(claims.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
