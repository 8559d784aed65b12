package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kondisi is the physical condition of an asset.
type Kondisi string

const (
	KondisiBaik        Kondisi = "baik"
	KondisiRusakRingan Kondisi = "rusak_ringan"
	KondisiRusakBerat  Kondisi = "rusak_berat"
)

// Valid reports whether k is one of the known conditions.
func (k Kondisi) Valid() bool {
	switch k {
	case KondisiBaik, KondisiRusakRingan, KondisiRusakBerat:
		return true
	}
	return false
}

// Asset ("aset") is an inventory item located in a room.
type Asset struct {
	ID        string    `json:"id" bson:"_id" validate:"required"`
	RuanganID int64     `json:"ruangan_id" bson:"ruangan_id" validate:"gt=0"`
	Name      string    `json:"name" bson:"name" validate:"required"`
	Merk      *string   `json:"merk,omitempty" bson:"merk,omitempty"`
	Tahun     *int      `json:"tahun,omitempty" bson:"tahun,omitempty"`
	Kode      *string   `json:"kode,omitempty" bson:"kode,omitempty"`
	NUP       *string   `json:"nup,omitempty" bson:"nup,omitempty"`
	Milik     *string   `json:"milik,omitempty" bson:"milik,omitempty"`
	Jumlah    int       `json:"jumlah" bson:"jumlah" validate:"gte=0"`
	Kondisi   Kondisi   `json:"kondisi" bson:"kondisi" validate:"oneof=baik rusak_ringan rusak_berat"`
	Foto      *string   `json:"foto,omitempty" bson:"foto,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	Ruangan   *Room     `json:"ruangan,omitempty" bson:"ruangan,omitempty"`
}

// AssetInput is the caller-supplied part of a new asset.
type AssetInput struct {
	RuanganID int64   `json:"ruangan_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Merk      *string `json:"merk,omitempty"`
	Tahun     *int    `json:"tahun,omitempty" validate:"omitempty,gte=1900"`
	Kode      *string `json:"kode,omitempty"`
	NUP       *string `json:"nup,omitempty"`
	Milik     *string `json:"milik,omitempty"`
	Jumlah    int     `json:"jumlah" validate:"gte=0"`
	Kondisi   Kondisi `json:"kondisi" validate:"required,oneof=baik rusak_ringan rusak_berat"`
	Foto      *string `json:"foto,omitempty"`
}

// AssetPatch is a partial asset update. Nil fields are left untouched.
type AssetPatch struct {
	RuanganID *int64   `json:"ruangan_id,omitempty" validate:"omitempty,gt=0"`
	Name      *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	Merk      *string  `json:"merk,omitempty"`
	Tahun     *int     `json:"tahun,omitempty" validate:"omitempty,gte=1900"`
	Kode      *string  `json:"kode,omitempty"`
	NUP       *string  `json:"nup,omitempty"`
	Milik     *string  `json:"milik,omitempty"`
	Jumlah    *int     `json:"jumlah,omitempty" validate:"omitempty,gte=0"`
	Kondisi   *Kondisi `json:"kondisi,omitempty" validate:"omitempty,oneof=baik rusak_ringan rusak_berat"`
	Foto      *string  `json:"foto,omitempty"`
}

// Apply returns a copy of a with the patch merged in. Moving an asset to
// another room drops the nested room snapshot until the server resolves it.
func (p AssetPatch) Apply(a Asset) Asset {
	if p.RuanganID != nil && *p.RuanganID != a.RuanganID {
		a.RuanganID = *p.RuanganID
		a.Ruangan = nil
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Merk != nil {
		a.Merk = p.Merk
	}
	if p.Tahun != nil {
		a.Tahun = p.Tahun
	}
	if p.Kode != nil {
		a.Kode = p.Kode
	}
	if p.NUP != nil {
		a.NUP = p.NUP
	}
	if p.Milik != nil {
		a.Milik = p.Milik
	}
	if p.Jumlah != nil {
		a.Jumlah = *p.Jumlah
	}
	if p.Kondisi != nil {
		a.Kondisi = *p.Kondisi
	}
	if p.Foto != nil {
		a.Foto = p.Foto
	}
	return a
}

// DashboardStats aggregates assets by condition.
type DashboardStats struct {
	TotalAssets int `json:"total_assets"`
	Baik        int `json:"baik"`
	RusakRingan int `json:"rusak_ringan"`
	RusakBerat  int `json:"rusak_berat"`
}

// ComputeStats counts assets per condition.
func ComputeStats(assets []Asset) DashboardStats {
	stats := DashboardStats{TotalAssets: len(assets)}
	for _, a := range assets {
		switch a.Kondisi {
		case KondisiBaik:
			stats.Baik++
		case KondisiRusakRingan:
			stats.RusakRingan++
		case KondisiRusakBerat:
			stats.RusakBerat++
		}
	}
	return stats
}

const tempAssetPrefix = "temp-"

// NewTemporaryAssetID returns a locally synthesized asset id.
func NewTemporaryAssetID() string {
	return tempAssetPrefix + uuid.NewString()
}

// IsTemporaryAssetID reports whether id was synthesized locally.
func IsTemporaryAssetID(id string) bool {
	return strings.HasPrefix(id, tempAssetPrefix)
}
