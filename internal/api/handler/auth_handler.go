package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/inventaris/inventory-state/internal/core/domain"
)

// Session is the part of *store.SessionStore the auth routes drive.
type Session interface {
	Login(ctx context.Context, email, password string) bool
	Logout(ctx context.Context)
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) bool
	User() *domain.User
	Error() string
}

type AuthHandler struct {
	session Session
}

func NewAuthHandler(session Session) *AuthHandler {
	return &AuthHandler{session: session}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

// Login signs the process-wide session in.
//
// POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid payload"})
	}

	if !h.session.Login(c.Request().Context(), req.Email, req.Password) {
		return c.JSON(http.StatusUnauthorized, errorBody{Error: h.session.Error()})
	}
	return c.JSON(http.StatusOK, userResponse{User: h.session.User()})
}

// Logout always succeeds locally.
//
// POST /auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	h.session.Logout(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in profile.
//
// GET /auth/me
func (h *AuthHandler) Me(c echo.Context) error {
	u, err := ctxUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{User: u})
}

// UpdateMe changes the signed-in profile.
//
// PATCH /auth/me
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	var req domain.ProfileUpdate
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid payload"})
	}
	if req.Empty() {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "nothing to update"})
	}

	if !h.session.UpdateProfile(c.Request().Context(), req) {
		return c.JSON(http.StatusUnprocessableEntity, errorBody{Error: h.session.Error()})
	}
	return c.JSON(http.StatusOK, userResponse{User: h.session.User()})
}

type errorBody struct {
	Error string `json:"error"`
}
