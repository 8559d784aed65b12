package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	var ve *validate.Error
	if errors.As(err, &ve) && errors.Is(err, domain.ErrInvalidInput) {
		return http.StatusBadRequest, ve.Error()
	}

	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound, "room not found"
	case errors.Is(err, domain.ErrAssetNotFound):
		return http.StatusNotFound, "asset not found"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrPendingConfirmation):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ports.ErrQueueClosed):
		return http.StatusServiceUnavailable, "shutting down"
	}

	// Backend failures surfaced through a settled mutation or a fetch.
	var be *ports.BackendError
	if errors.As(err, &be) {
		log.Warn().Err(err).Str("op", be.Op).Str("path", c.Path()).Msg("backend error")
		if be.Message != "" {
			return http.StatusBadGateway, be.Message
		}
		return http.StatusBadGateway, "backend unavailable"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
