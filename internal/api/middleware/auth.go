package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/inventaris/inventory-state/internal/core/domain"
)

// ContextUserKey is the echo context key holding the *domain.User of the session.
const ContextUserKey = "user"

// Authorizer is the session gate; *store.SessionStore implements it.
type Authorizer interface {
	Authorize(ctx context.Context, access domain.Access) error
	User() *domain.User
}

// RequireAuth lets the request through only when a session is signed in,
// and injects its user into the context.
func RequireAuth(authz Authorizer) echo.MiddlewareFunc {
	return require(authz, domain.Access{RequiresAuth: true})
}

func require(authz Authorizer, access domain.Access) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authz.Authorize(c.Request().Context(), access); err != nil {
				return err
			}
			u := authz.User()
			if u == nil {
				return domain.ErrUnauthenticated
			}
			c.Set(ContextUserKey, u)
			return next(c)
		}
	}
}
