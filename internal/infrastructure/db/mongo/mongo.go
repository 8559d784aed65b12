package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

const defaultTimeout = 10 * time.Second

const (
	collectionUsers    = "users"
	collectionRooms    = "ruangans"
	collectionAssets   = "assets"
	collectionCounters = "counters"
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// Pinger reports database reachability for the readiness probe.
type Pinger struct {
	client *mongo.Client
}

func NewPinger(client *mongo.Client) *Pinger { return &Pinger{client: client} }

func (p *Pinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return p.client.Ping(ctx, nil)
}

// EnsureIndexes creates the indexes the repositories query by.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.Collection(collectionUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	if _, err := db.Collection(collectionRooms).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("ruangans indexes: %w", err)
	}
	if _, err := db.Collection(collectionAssets).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ruangan_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("assets indexes: %w", err)
	}
	return nil
}

// backendError wraps a driver failure. notFound becomes the wrapped error
// when the driver reports a missing document.
func backendError(op string, err error, notFound error) error {
	if errors.Is(err, mongo.ErrNoDocuments) && notFound != nil {
		return &ports.BackendError{Op: op, Status: 404, Err: notFound}
	}
	var ve *validate.Error
	if errors.As(err, &ve) {
		return &ports.BackendError{Op: op, Err: err}
	}
	if mongo.IsDuplicateKeyError(err) {
		return &ports.BackendError{Op: op, Status: 409, Message: "Data sudah ada", Err: err}
	}
	return &ports.BackendError{Op: op, Err: err}
}

// setFields turns the non-nil fields of a patch into a $set document.
func setFields(fields bson.M, now time.Time) bson.M {
	fields["updated_at"] = now
	return bson.M{"$set": fields}
}
