package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/store"
)

// RoomHandler exposes the room collection of the local state.
type RoomHandler struct {
	rooms *store.RoomStore
}

func NewRoomHandler(rooms *store.RoomStore) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// List returns the local snapshot; ?refresh=true reloads it from the backend first.
//
// GET /v1/rooms
func (h *RoomHandler) List(c echo.Context) error {
	if refresh, _ := strconv.ParseBool(c.QueryParam("refresh")); refresh {
		if err := h.rooms.FetchAll(c.Request().Context()); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, listResponse[domain.Room]{
		Data:      h.rooms.Items(),
		Loading:   h.rooms.Loading(),
		SyncError: h.rooms.Error(),
		Pending:   h.rooms.Pending(),
	})
}

// GET /v1/rooms/:id
func (h *RoomHandler) Get(c echo.Context) error {
	id, err := roomID(c, "id")
	if err != nil {
		return err
	}
	room, ok := h.rooms.GetByID(id)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return c.JSON(http.StatusOK, room)
}

// POST /v1/rooms
func (h *RoomHandler) Create(c echo.Context) error {
	var req domain.RoomInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid payload"})
	}
	m, err := h.rooms.Create(req)
	if err != nil {
		return err
	}
	return respondMutation(c, m, http.StatusCreated)
}

// PATCH /v1/rooms/:id
func (h *RoomHandler) Update(c echo.Context) error {
	id, err := roomID(c, "id")
	if err != nil {
		return err
	}
	var req domain.RoomPatch
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid payload"})
	}
	m, err := h.rooms.Update(id, req)
	if err != nil {
		return err
	}
	return respondMutation(c, m, http.StatusOK)
}

// DELETE /v1/rooms/:id
func (h *RoomHandler) Delete(c echo.Context) error {
	id, err := roomID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.rooms.Delete(id)
	if err != nil {
		return err
	}
	return respondMutation(c, m, http.StatusNoContent)
}

// ClearSyncError dismisses the last sync error of the room collection.
//
// DELETE /v1/rooms/sync-error
func (h *RoomHandler) ClearSyncError(c echo.Context) error {
	h.rooms.ClearError()
	return c.NoContent(http.StatusNoContent)
}
