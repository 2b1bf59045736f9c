package middleware

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/angelmondragon/releasehub-billing/api/responses"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
)

// RequireRole rejects operators whose token role is not one of allowed.
func RequireRole(logg *logger.Logger, allowed ...enums.OperatorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.OperatorRole(RoleFromContext(r.Context()))
			if !lo.Contains(allowed, role) {
				err := pkgerrors.New(pkgerrors.CodeForbidden, "operator role not permitted").
					WithDetails(map[string]any{"role": role.String()})
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
