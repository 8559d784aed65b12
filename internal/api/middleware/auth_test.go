package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/inventaris/inventory-state/internal/core/domain"
)

type stubAuthorizer struct {
	user   *domain.User
	access []domain.Access
}

func (s *stubAuthorizer) Authorize(_ context.Context, access domain.Access) error {
	s.access = append(s.access, access)
	if s.user == nil {
		return domain.ErrUnauthenticated
	}
	if access.RequiresAdmin && !s.user.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

func (s *stubAuthorizer) User() *domain.User { return s.user }

func TestRequireAuth_SignedIn(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	authz := &stubAuthorizer{user: &domain.User{ID: "u1", Role: domain.RoleOperator}}
	called := false
	handler := RequireAuth(authz)(func(c echo.Context) error {
		called = true
		u, _ := c.Get(ContextUserKey).(*domain.User)
		if u == nil || u.ID != "u1" {
			t.Fatalf("user not set")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if len(authz.access) != 1 || !authz.access[0].RequiresAuth || authz.access[0].RequiresAdmin {
		t.Fatalf("unexpected access requirement: %+v", authz.access)
	}
}

func TestRequireAuth_NoSession(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireAuth(&stubAuthorizer{})(func(c echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})

	if err := handler(c); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
