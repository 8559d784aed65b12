package ports

import (
	"context"
	"fmt"

	"github.com/inventaris/inventory-state/internal/core/domain"
)

// RoomFilter narrows a room listing. Results are always ordered newest first.
type RoomFilter struct {
	OwnerID string // empty = every room (admin); non-empty = rooms assigned to this user
}

// AssetFilter narrows an asset listing. Results are always ordered newest first.
type AssetFilter struct {
	RuanganID int64  // optional: assets of one room
	OwnerID   string // optional: assets in rooms assigned to this user
}

// RoomRepository is the remote "ruangans" table. Insert and Update return the
// confirmed row joined with its owner.
type RoomRepository interface {
	List(ctx context.Context, filter RoomFilter) ([]domain.Room, error)
	Insert(ctx context.Context, input domain.RoomInput) (*domain.Room, error)
	Update(ctx context.Context, id int64, patch domain.RoomPatch) (*domain.Room, error)
	Delete(ctx context.Context, id int64) error
}

// AssetRepository is the remote "assets" table. Insert and Update return the
// confirmed row joined with its room.
type AssetRepository interface {
	List(ctx context.Context, filter AssetFilter) ([]domain.Asset, error)
	Insert(ctx context.Context, input domain.AssetInput) (*domain.Asset, error)
	Update(ctx context.Context, id string, patch domain.AssetPatch) (*domain.Asset, error)
	Delete(ctx context.Context, id string) error
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendError is the structured failure returned by every backend adapter.
type BackendError struct {
	Op      string // e.g. "rooms.insert"
	Status  int    // transport status when known (HTTP code), 0 otherwise
	Message string // backend-supplied, user-presentable message when available
	Err     error
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *BackendError) Unwrap() error { return e.Err }
