package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/curamind/curamind/internal/contract"
)

// RequireRole returns middleware that checks the caller holds one of roles.
// Unlike a hierarchy, Admin does not imply Doctor or Patient.
func RequireRole(roles ...contract.Role) echo.MiddlewareFunc {
	names := strings.Join(lo.Map(roles, func(r contract.Role, _ int) string { return string(r) }), " or ")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := IdentityFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
			}
			if lo.Contains(roles, ident.Role) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("required role: %s", names))
		}
	}
}
