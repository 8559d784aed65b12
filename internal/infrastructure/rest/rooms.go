package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// roomSelect embeds the owner as the nested "user" object.
const roomSelect = "*,user:users(name,role,profile_picture)"

// RoomRepository is the "ruangans" table.
type RoomRepository struct {
	c *Client
}

var _ ports.RoomRepository = (*RoomRepository)(nil)

func NewRoomRepository(c *Client) *RoomRepository {
	return &RoomRepository{c: c}
}

func (r *RoomRepository) List(ctx context.Context, filter ports.RoomFilter) ([]domain.Room, error) {
	q := url.Values{}
	q.Set("select", roomSelect)
	q.Set("order", "created_at.desc")
	if filter.OwnerID != "" {
		q.Set("user_id", "eq."+filter.OwnerID)
	}

	var rooms []domain.Room
	if err := r.c.do(ctx, request{op: "ruangans.list", method: http.MethodGet, path: "/rest/v1/ruangans", query: q}, &rooms); err != nil {
		return nil, err
	}
	for i := range rooms {
		if err := validate.Payload(rooms[i]); err != nil {
			return nil, &ports.BackendError{Op: "ruangans.list", Err: err}
		}
	}
	return rooms, nil
}

func (r *RoomRepository) Insert(ctx context.Context, input domain.RoomInput) (*domain.Room, error) {
	q := url.Values{}
	q.Set("select", roomSelect)
	return r.one(ctx, request{op: "ruangans.insert", method: http.MethodPost, path: "/rest/v1/ruangans", query: q, body: input})
}

func (r *RoomRepository) Update(ctx context.Context, id int64, patch domain.RoomPatch) (*domain.Room, error) {
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	q.Set("select", roomSelect)
	body := struct {
		domain.RoomPatch
		UpdatedAt time.Time `json:"updated_at"`
	}{patch, time.Now().UTC()}
	return r.one(ctx, request{
		op: "ruangans.update", method: http.MethodPatch, path: "/rest/v1/ruangans",
		query: q, body: body, notFound: domain.ErrRoomNotFound,
	})
}

// Delete removes the room. Deleting a room that is already gone succeeds.
func (r *RoomRepository) Delete(ctx context.Context, id int64) error {
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	return r.c.do(ctx, request{op: "ruangans.delete", method: http.MethodDelete, path: "/rest/v1/ruangans", query: q}, nil)
}

func (r *RoomRepository) one(ctx context.Context, req request) (*domain.Room, error) {
	req.object = true
	var room domain.Room
	if err := r.c.do(ctx, req, &room); err != nil {
		return nil, err
	}
	if err := validate.Payload(room); err != nil {
		return nil, &ports.BackendError{Op: req.op, Err: err}
	}
	return &room, nil
}
