package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// AssetStore is the reactive cache of assets visible to the acting session.
type AssetStore struct {
	*entityStore[string, domain.Asset]
	repo    ports.AssetRepository
	session SessionReader
}

// NewAssetStore returns an empty AssetStore.
func NewAssetStore(repo ports.AssetRepository, session SessionReader, queue ports.MutationQueue, obs ports.MutationObserver, log zerolog.Logger) *AssetStore {
	return &AssetStore{
		entityStore: newEntityStore("asset",
			func(a domain.Asset) string { return a.ID },
			domain.IsTemporaryAssetID,
			queue, obs, log),
		repo:    repo,
		session: session,
	}
}

// FetchAll replaces the collection with the server's assets, newest first.
// A non-zero ruanganID limits the listing to one room; operators only ever
// see assets in rooms assigned to them.
func (s *AssetStore) FetchAll(ctx context.Context, ruanganID int64) error {
	filter := ports.AssetFilter{RuanganID: ruanganID}
	if u := s.session.User(); u.IsOperator() {
		filter.OwnerID = u.ID
	}
	return s.fetch(ctx, func(ctx context.Context) ([]domain.Asset, error) {
		return s.repo.List(ctx, filter)
	}, domain.MsgFetchAssetsFailed)
}

// GetByID looks an asset up in the local collection.
func (s *AssetStore) GetByID(id string) (domain.Asset, bool) {
	return s.get(id)
}

// Stats counts the visible assets by condition. It is computed on every call.
func (s *AssetStore) Stats() domain.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ComputeStats(s.items)
}

// Create shows the new asset immediately under a temporary id. Its room
// snapshot is only filled in once the server confirms.
func (s *AssetStore) Create(input domain.AssetInput) (*Mutation[domain.Asset], error) {
	if err := validate.Input(input); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	tmp := domain.Asset{
		ID:        domain.NewTemporaryAssetID(),
		RuanganID: input.RuanganID,
		Name:      input.Name,
		Merk:      input.Merk,
		Tahun:     input.Tahun,
		Kode:      input.Kode,
		NUP:       input.NUP,
		Milik:     input.Milik,
		Jumlah:    input.Jumlah,
		Kondisi:   input.Kondisi,
		Foto:      input.Foto,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.create(tmp, func(ctx context.Context) (*domain.Asset, error) {
		return s.repo.Insert(ctx, input)
	}, domain.MsgCreateAssetFailed), nil
}

// Update applies patch locally and sends it in the background.
func (s *AssetStore) Update(id string, patch domain.AssetPatch) (*Mutation[domain.Asset], error) {
	if err := validate.Input(patch); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return s.update(id,
		func(a domain.Asset) domain.Asset {
			a = patch.Apply(a)
			a.ID = id
			a.UpdatedAt = now
			return a
		},
		func(ctx context.Context) (*domain.Asset, error) {
			return s.repo.Update(ctx, id, patch)
		},
		domain.MsgUpdateAssetFailed, domain.ErrAssetNotFound)
}

// Delete removes the asset locally and deletes it in the background.
func (s *AssetStore) Delete(id string) (*Mutation[domain.Asset], error) {
	return s.remove(id, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	}, domain.MsgDeleteAssetFailed, domain.ErrAssetNotFound)
}
