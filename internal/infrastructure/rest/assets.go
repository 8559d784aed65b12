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

const (
	assetSelect = "*,ruangan:ruangans(*)"
	// assetOwnedSelect drops assets whose room does not match the embedded filter.
	assetOwnedSelect = "*,ruangan:ruangans!inner(*)"
)

// AssetRepository is the "assets" table.
type AssetRepository struct {
	c *Client
}

var _ ports.AssetRepository = (*AssetRepository)(nil)

func NewAssetRepository(c *Client) *AssetRepository {
	return &AssetRepository{c: c}
}

func (r *AssetRepository) List(ctx context.Context, filter ports.AssetFilter) ([]domain.Asset, error) {
	q := url.Values{}
	q.Set("select", assetSelect)
	q.Set("order", "created_at.desc")
	if filter.RuanganID != 0 {
		q.Set("ruangan_id", "eq."+strconv.FormatInt(filter.RuanganID, 10))
	}
	if filter.OwnerID != "" {
		q.Set("select", assetOwnedSelect)
		q.Set("ruangan.user_id", "eq."+filter.OwnerID)
	}

	var assets []domain.Asset
	if err := r.c.do(ctx, request{op: "assets.list", method: http.MethodGet, path: "/rest/v1/assets", query: q}, &assets); err != nil {
		return nil, err
	}
	for i := range assets {
		if err := validate.Payload(assets[i]); err != nil {
			return nil, &ports.BackendError{Op: "assets.list", Err: err}
		}
	}
	return assets, nil
}

func (r *AssetRepository) Insert(ctx context.Context, input domain.AssetInput) (*domain.Asset, error) {
	q := url.Values{}
	q.Set("select", assetSelect)
	return r.one(ctx, request{op: "assets.insert", method: http.MethodPost, path: "/rest/v1/assets", query: q, body: input})
}

func (r *AssetRepository) Update(ctx context.Context, id string, patch domain.AssetPatch) (*domain.Asset, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", assetSelect)
	body := struct {
		domain.AssetPatch
		UpdatedAt time.Time `json:"updated_at"`
	}{patch, time.Now().UTC()}
	return r.one(ctx, request{
		op: "assets.update", method: http.MethodPatch, path: "/rest/v1/assets",
		query: q, body: body, notFound: domain.ErrAssetNotFound,
	})
}

// Delete removes the asset. Deleting an asset that is already gone succeeds.
func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	return r.c.do(ctx, request{op: "assets.delete", method: http.MethodDelete, path: "/rest/v1/assets", query: q}, nil)
}

func (r *AssetRepository) one(ctx context.Context, req request) (*domain.Asset, error) {
	req.object = true
	var a domain.Asset
	if err := r.c.do(ctx, req, &a); err != nil {
		return nil, err
	}
	if err := validate.Payload(a); err != nil {
		return nil, &ports.BackendError{Op: req.op, Err: err}
	}
	return &a, nil
}
