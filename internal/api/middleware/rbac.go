package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/inventaris/inventory-state/internal/core/domain"
)

// RequireAdmin restricts the route to the privileged role. Operators get
// domain.ErrForbidden, anonymous callers domain.ErrUnauthenticated.
func RequireAdmin(authz Authorizer) echo.MiddlewareFunc {
	return require(authz, domain.Access{RequiresAuth: true, RequiresAdmin: true})
}
