package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// AssetRepository stores assets in "assets" joined with their room.
type AssetRepository struct {
	db DB
}

var _ ports.AssetRepository = (*AssetRepository)(nil)

func NewAssetRepository(db DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// assetColumns selects an asset row aliased a, joined with ruangans aliased r.
const assetColumns = `a.id::text, a.ruangan_id, a.name, a.merk, a.tahun, a.kode, a.nup, a.milik,
  a.jumlah, a.kondisi, a.foto, a.created_at, a.updated_at,
  r.id, r.user_id::text, r.name, r.header_img, r.created_at, r.updated_at`

// List returns assets newest first. An owner filter keeps only assets whose
// room is assigned to that user.
func (r *AssetRepository) List(ctx context.Context, filter ports.AssetFilter) ([]domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	join := "left join"
	var (
		where []string
		args  []any
	)
	if filter.RuanganID != 0 {
		args = append(args, filter.RuanganID)
		where = append(where, fmt.Sprintf("a.ruangan_id = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		join = "join"
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("r.user_id = $%d::uuid", len(args)))
	}

	q := `select ` + assetColumns + `
from assets a
` + join + ` ruangans r on r.id = a.ruangan_id`
	if len(where) > 0 {
		q += ` where ` + strings.Join(where, " and ")
	}
	q += ` order by a.created_at desc, a.id`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, backendError("assets.list", err, nil)
	}
	assets, err := pgx.CollectRows(rows, rowTo(scanAsset))
	if err != nil {
		return nil, backendError("assets.list", err, nil)
	}
	return assets, nil
}

func (r *AssetRepository) Insert(ctx context.Context, input domain.AssetInput) (*domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	const q = `with a as (
  insert into assets (ruangan_id, name, merk, tahun, kode, nup, milik, jumlah, kondisi, foto)
  values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
  returning *
)
select ` + assetColumns + `
from a
left join ruangans r on r.id = a.ruangan_id`

	asset, err := scanAsset(r.db.QueryRow(ctx, q,
		input.RuanganID, input.Name, input.Merk, input.Tahun, input.Kode,
		input.NUP, input.Milik, input.Jumlah, string(input.Kondisi), input.Foto))
	if err != nil {
		return nil, backendError("assets.insert", err, nil)
	}
	return &asset, nil
}

func (r *AssetRepository) Update(ctx context.Context, id string, patch domain.AssetPatch) (*domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update, args := assetSet(patch).update("assets", "id", id)
	q := `with a as (` + update + `)
select ` + assetColumns + `
from a
left join ruangans r on r.id = a.ruangan_id`

	asset, err := scanAsset(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, backendError("assets.update", err, domain.ErrAssetNotFound)
	}
	return &asset, nil
}

// Delete removes the asset. Deleting an asset that is already gone succeeds.
func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.db.Exec(ctx, `delete from assets where id = $1`, id); err != nil {
		return backendError("assets.delete", err, nil)
	}
	return nil
}

func assetSet(p domain.AssetPatch) *setList {
	var set setList
	if p.RuanganID != nil {
		set.add("ruangan_id", *p.RuanganID)
	}
	if p.Name != nil {
		set.add("name", *p.Name)
	}
	if p.Merk != nil {
		set.add("merk", *p.Merk)
	}
	if p.Tahun != nil {
		set.add("tahun", *p.Tahun)
	}
	if p.Kode != nil {
		set.add("kode", *p.Kode)
	}
	if p.NUP != nil {
		set.add("nup", *p.NUP)
	}
	if p.Milik != nil {
		set.add("milik", *p.Milik)
	}
	if p.Jumlah != nil {
		set.add("jumlah", *p.Jumlah)
	}
	if p.Kondisi != nil {
		set.add("kondisi", string(*p.Kondisi))
	}
	if p.Foto != nil {
		set.add("foto", *p.Foto)
	}
	return &set
}

func scanAsset(row pgx.Row) (domain.Asset, error) {
	var (
		a       domain.Asset
		kondisi string
		roomID  *int64
		owner   *string
		name    *string
		header  *string
		created *time.Time
		updated *time.Time
	)
	err := row.Scan(&a.ID, &a.RuanganID, &a.Name, &a.Merk, &a.Tahun, &a.Kode, &a.NUP, &a.Milik,
		&a.Jumlah, &kondisi, &a.Foto, &a.CreatedAt, &a.UpdatedAt,
		&roomID, &owner, &name, &header, &created, &updated)
	if err != nil {
		return domain.Asset{}, err
	}
	a.Kondisi = domain.Kondisi(kondisi)
	if roomID != nil {
		room := &domain.Room{ID: *roomID, HeaderImg: header}
		if owner != nil {
			room.UserID = *owner
		}
		if name != nil {
			room.Name = *name
		}
		if created != nil {
			room.CreatedAt = *created
		}
		if updated != nil {
			room.UpdatedAt = *updated
		}
		a.Ruangan = room
	}
	if err := validate.Payload(a); err != nil {
		return domain.Asset{}, err
	}
	return a, nil
}
