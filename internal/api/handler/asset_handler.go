package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/store"
)

// AssetHandler exposes the asset collection of the local state.
type AssetHandler struct {
	assets *store.AssetStore
}

func NewAssetHandler(assets *store.AssetStore) *AssetHandler {
	return &AssetHandler{assets: assets}
}

// List returns the local snapshot; ?refresh=true reloads it from the backend
// first, optionally narrowed to ?ruangan_id=.
//
// GET /v1/assets
func (h *AssetHandler) List(c echo.Context) error {
	if refresh, _ := strconv.ParseBool(c.QueryParam("refresh")); refresh {
		var ruanganID int64
		if raw := c.QueryParam("ruangan_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid ruangan_id")
			}
			ruanganID = id
		}
		if err := h.assets.FetchAll(c.Request().Context(), ruanganID); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, listResponse[domain.Asset]{
		Data:      h.assets.Items(),
		Loading:   h.assets.Loading(),
		SyncError: h.assets.Error(),
		Pending:   h.assets.Pending(),
	})
}

// Stats counts the local assets by condition.
//
// GET /v1/assets/stats
func (h *AssetHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.assets.Stats())
}

// GET /v1/assets/:id
func (h *AssetHandler) Get(c echo.Context) error {
	a, ok := h.assets.GetByID(c.Param("id"))
	if !ok {
		return domain.ErrAssetNotFound
	}
	return c.JSON(http.StatusOK, a)
}

// POST /v1/assets
func (h *AssetHandler) Create(c echo.Context) error {
	var req domain.AssetInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid payload"})
	}
	m, err := h.assets.Create(req)
	if err != nil {
		return err
	}
	return respondMutation(c, m, http.StatusCreated)
}

// PATCH /v1/assets/:id
func (h *AssetHandler) Update(c echo.Context) error {
	var req domain.AssetPatch
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid payload"})
	}
	m, err := h.assets.Update(c.Param("id"), req)
	if err != nil {
		return err
	}
	return respondMutation(c, m, http.StatusOK)
}

// DELETE /v1/assets/:id
func (h *AssetHandler) Delete(c echo.Context) error {
	m, err := h.assets.Delete(c.Param("id"))
	if err != nil {
		return err
	}
	return respondMutation(c, m, http.StatusNoContent)
}

// DELETE /v1/assets/sync-error
func (h *AssetHandler) ClearSyncError(c echo.Context) error {
	h.assets.ClearError()
	return c.NoContent(http.StatusNoContent)
}
