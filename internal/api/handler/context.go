package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/inventaris/inventory-state/internal/api/middleware"
	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/store"
)

// ctxUser returns the session user injected by middleware.RequireAuth.
func ctxUser(c echo.Context) (*domain.User, error) {
	u, _ := c.Get(middleware.ContextUserKey).(*domain.User)
	if u == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	return u, nil
}

func roomID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid room id")
	}
	return id, nil
}

// wantsSettlement reports whether the caller asked to block until the
// mutation is confirmed or reverted.
func wantsSettlement(c echo.Context) bool {
	wait, _ := strconv.ParseBool(c.QueryParam("wait"))
	return wait
}

// respondMutation answers 202 with the optimistic record, or with the
// settled record when ?wait=true.
func respondMutation[T any](c echo.Context, m *store.Mutation[T], settled int) error {
	if !wantsSettlement(c) {
		return c.JSON(http.StatusAccepted, m.Optimistic())
	}
	res, err := m.Wait(c.Request().Context())
	if err != nil {
		return err
	}
	if settled == http.StatusNoContent {
		return c.NoContent(settled)
	}
	return c.JSON(settled, res)
}

// listResponse is the envelope of a collection snapshot.
type listResponse[T any] struct {
	Data      []T    `json:"data"`
	Loading   bool   `json:"loading"`
	SyncError string `json:"sync_error,omitempty"`
	Pending   int    `json:"pending"`
}
