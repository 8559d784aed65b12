package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// RoomRepository stores rooms in the "ruangans" collection. Numeric ids come
// from a sequence document in "counters".
type RoomRepository struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

var _ ports.RoomRepository = (*RoomRepository)(nil)

func NewRoomRepository(db *mongo.Database) *RoomRepository {
	return &RoomRepository{
		col:      db.Collection(collectionRooms),
		counters: db.Collection(collectionCounters),
	}
}

type roomDoc struct {
	ID        int64     `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Name      string    `bson:"name"`
	HeaderImg *string   `bson:"header_img,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ownerLookup joins the assigned user as the nested "user" field.
func ownerLookup() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collectionUsers},
			{Key: "localField", Value: "user_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "user"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$user"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "user.email", Value: 0},
			{Key: "user.password_hash", Value: 0},
			{Key: "user.sampul_img", Value: 0},
			{Key: "user.created_at", Value: 0},
			{Key: "user.updated_at", Value: 0},
			{Key: "user._id", Value: 0},
		}}},
	}
}

// List returns rooms newest first, joined with their owner.
func (r *RoomRepository) List(ctx context.Context, filter ports.RoomFilter) ([]domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	match := bson.M{}
	if filter.OwnerID != "" {
		match["user_id"] = filter.OwnerID
	}
	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
	}, ownerLookup()...)

	rooms, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, backendError("ruangans.list", err, nil)
	}
	return rooms, nil
}

func (r *RoomRepository) Insert(ctx context.Context, input domain.RoomInput) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, backendError("ruangans.insert", err, nil)
	}
	now := time.Now().UTC()
	doc := roomDoc{
		ID:        id,
		UserID:    input.UserID,
		Name:      input.Name,
		HeaderImg: input.HeaderImg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, backendError("ruangans.insert", err, nil)
	}
	return r.findJoined(ctx, "ruangans.insert", id)
}

func (r *RoomRepository) Update(ctx context.Context, id int64, patch domain.RoomPatch) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	fields := bson.M{}
	if patch.UserID != nil {
		fields["user_id"] = *patch.UserID
	}
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.HeaderImg != nil {
		fields["header_img"] = *patch.HeaderImg
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, setFields(fields, time.Now().UTC()))
	if err != nil {
		return nil, backendError("ruangans.update", err, nil)
	}
	if res.MatchedCount == 0 {
		return nil, backendError("ruangans.update", mongo.ErrNoDocuments, domain.ErrRoomNotFound)
	}
	return r.findJoined(ctx, "ruangans.update", id)
}

// Delete removes the room. Deleting a room that is already gone succeeds.
func (r *RoomRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return backendError("ruangans.delete", err, nil)
	}
	return nil
}

func (r *RoomRepository) findJoined(ctx context.Context, op string, id int64) (*domain.Room, error) {
	pipeline := append(mongo.Pipeline{{{Key: "$match", Value: bson.M{"_id": id}}}}, ownerLookup()...)
	rooms, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, backendError(op, err, nil)
	}
	if len(rooms) == 0 {
		return nil, backendError(op, mongo.ErrNoDocuments, domain.ErrRoomNotFound)
	}
	return &rooms[0], nil
}

func (r *RoomRepository) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]domain.Room, error) {
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rooms []domain.Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	for i := range rooms {
		if err := validate.Payload(rooms[i]); err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

func (r *RoomRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": collectionRooms},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}
