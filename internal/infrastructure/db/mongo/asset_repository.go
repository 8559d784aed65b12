package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// AssetRepository stores assets in the "assets" collection under uuid ids.
type AssetRepository struct {
	col *mongo.Collection
}

var _ ports.AssetRepository = (*AssetRepository)(nil)

func NewAssetRepository(db *mongo.Database) *AssetRepository {
	return &AssetRepository{col: db.Collection(collectionAssets)}
}

type assetDoc struct {
	ID        string         `bson:"_id"`
	RuanganID int64          `bson:"ruangan_id"`
	Name      string         `bson:"name"`
	Merk      *string        `bson:"merk,omitempty"`
	Tahun     *int           `bson:"tahun,omitempty"`
	Kode      *string        `bson:"kode,omitempty"`
	NUP       *string        `bson:"nup,omitempty"`
	Milik     *string        `bson:"milik,omitempty"`
	Jumlah    int            `bson:"jumlah"`
	Kondisi   domain.Kondisi `bson:"kondisi"`
	Foto      *string        `bson:"foto,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

// roomLookup joins the containing room as the nested "ruangan" field.
func roomLookup(preserveOrphans bool) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collectionRooms},
			{Key: "localField", Value: "ruangan_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "ruangan"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$ruangan"},
			{Key: "preserveNullAndEmptyArrays", Value: preserveOrphans},
		}}},
	}
}

// List returns assets newest first, joined with their room. An owner filter
// keeps only assets whose room is assigned to that user.
func (r *AssetRepository) List(ctx context.Context, filter ports.AssetFilter) ([]domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	match := bson.M{}
	if filter.RuanganID != 0 {
		match["ruangan_id"] = filter.RuanganID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	pipeline = append(pipeline, roomLookup(filter.OwnerID == "")...)
	if filter.OwnerID != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"ruangan.user_id": filter.OwnerID}}})
	}

	assets, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, backendError("assets.list", err, nil)
	}
	return assets, nil
}

func (r *AssetRepository) Insert(ctx context.Context, input domain.AssetInput) (*domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	doc := assetDoc{
		ID:        uuid.NewString(),
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
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, backendError("assets.insert", err, nil)
	}
	return r.findJoined(ctx, "assets.insert", doc.ID)
}

func (r *AssetRepository) Update(ctx context.Context, id string, patch domain.AssetPatch) (*domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, setFields(assetFields(patch), time.Now().UTC()))
	if err != nil {
		return nil, backendError("assets.update", err, nil)
	}
	if res.MatchedCount == 0 {
		return nil, backendError("assets.update", mongo.ErrNoDocuments, domain.ErrAssetNotFound)
	}
	return r.findJoined(ctx, "assets.update", id)
}

// Delete removes the asset. Deleting an asset that is already gone succeeds.
func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return backendError("assets.delete", err, nil)
	}
	return nil
}

func assetFields(p domain.AssetPatch) bson.M {
	fields := bson.M{}
	if p.RuanganID != nil {
		fields["ruangan_id"] = *p.RuanganID
	}
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Merk != nil {
		fields["merk"] = *p.Merk
	}
	if p.Tahun != nil {
		fields["tahun"] = *p.Tahun
	}
	if p.Kode != nil {
		fields["kode"] = *p.Kode
	}
	if p.NUP != nil {
		fields["nup"] = *p.NUP
	}
	if p.Milik != nil {
		fields["milik"] = *p.Milik
	}
	if p.Jumlah != nil {
		fields["jumlah"] = *p.Jumlah
	}
	if p.Kondisi != nil {
		fields["kondisi"] = *p.Kondisi
	}
	if p.Foto != nil {
		fields["foto"] = *p.Foto
	}
	return fields
}

func (r *AssetRepository) findJoined(ctx context.Context, op, id string) (*domain.Asset, error) {
	pipeline := append(mongo.Pipeline{{{Key: "$match", Value: bson.M{"_id": id}}}}, roomLookup(true)...)
	assets, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, backendError(op, err, nil)
	}
	if len(assets) == 0 {
		return nil, backendError(op, mongo.ErrNoDocuments, domain.ErrAssetNotFound)
	}
	return &assets[0], nil
}

func (r *AssetRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]domain.Asset, error) {
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var assets []domain.Asset
	if err := cur.All(ctx, &assets); err != nil {
		return nil, err
	}
	for i := range assets {
		if err := validate.Payload(assets[i]); err != nil {
			return nil, err
		}
	}
	return assets, nil
}
