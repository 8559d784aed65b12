package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// ProfileRepository is the "users" profile table.
type ProfileRepository struct {
	c *Client
}

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(c *Client) *ProfileRepository {
	return &ProfileRepository{c: c}
}

func (r *ProfileRepository) FindProfile(ctx context.Context, id string) (*domain.User, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)
	return r.one(ctx, request{op: "users.find", method: http.MethodGet, path: "/rest/v1/users", query: q, notFound: domain.ErrUserNotFound})
}

func (r *ProfileRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+id)
	body := struct {
		domain.ProfileUpdate
		UpdatedAt time.Time `json:"updated_at"`
	}{update, time.Now().UTC()}
	return r.one(ctx, request{
		op: "users.update", method: http.MethodPatch, path: "/rest/v1/users",
		query: q, body: body, notFound: domain.ErrUserNotFound,
	})
}

func (r *ProfileRepository) one(ctx context.Context, req request) (*domain.User, error) {
	req.object = true
	var u domain.User
	if err := r.c.do(ctx, req, &u); err != nil {
		return nil, err
	}
	if err := validate.Payload(u); err != nil {
		return nil, &ports.BackendError{Op: req.op, Err: err}
	}
	return &u, nil
}
