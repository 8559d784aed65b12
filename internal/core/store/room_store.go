package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// SessionReader is the read-only view of the session the entity stores use
// to scope queries.
type SessionReader interface {
	User() *domain.User
}

// RoomStore is the reactive cache of rooms visible to the acting session.
type RoomStore struct {
	*entityStore[int64, domain.Room]
	repo    ports.RoomRepository
	session SessionReader
}

// NewRoomStore returns an empty RoomStore.
func NewRoomStore(repo ports.RoomRepository, session SessionReader, queue ports.MutationQueue, obs ports.MutationObserver, log zerolog.Logger) *RoomStore {
	return &RoomStore{
		entityStore: newEntityStore("room",
			func(r domain.Room) int64 { return r.ID },
			domain.IsTemporaryRoomID,
			queue, obs, log),
		repo:    repo,
		session: session,
	}
}

// FetchAll replaces the collection with the server's rooms, newest first.
// Operators only see the rooms assigned to them.
func (s *RoomStore) FetchAll(ctx context.Context) error {
	filter := ports.RoomFilter{}
	if u := s.session.User(); u.IsOperator() {
		filter.OwnerID = u.ID
	}
	return s.fetch(ctx, func(ctx context.Context) ([]domain.Room, error) {
		return s.repo.List(ctx, filter)
	}, domain.MsgFetchRoomsFailed)
}

// GetByID looks a room up in the local collection.
func (s *RoomStore) GetByID(id int64) (domain.Room, bool) {
	return s.get(id)
}

// Create shows the new room immediately under a temporary id and inserts it
// in the background.
func (s *RoomStore) Create(input domain.RoomInput) (*Mutation[domain.Room], error) {
	if err := validate.Input(input); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	tmp := domain.Room{
		ID:        domain.NewTemporaryRoomID(),
		UserID:    input.UserID,
		Name:      input.Name,
		HeaderImg: input.HeaderImg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.create(tmp, func(ctx context.Context) (*domain.Room, error) {
		return s.repo.Insert(ctx, input)
	}, domain.MsgCreateRoomFailed), nil
}

// Update applies patch locally and sends it in the background. The snapshot
// taken here is restored if the server rejects the change.
func (s *RoomStore) Update(id int64, patch domain.RoomPatch) (*Mutation[domain.Room], error) {
	if err := validate.Input(patch); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return s.update(id,
		func(r domain.Room) domain.Room {
			r = patch.Apply(r)
			r.ID = id
			r.UpdatedAt = now
			return r
		},
		func(ctx context.Context) (*domain.Room, error) {
			return s.repo.Update(ctx, id, patch)
		},
		domain.MsgUpdateRoomFailed, domain.ErrRoomNotFound)
}

// Delete removes the room locally and deletes it in the background. The room
// is put back at its old position if the server refuses.
func (s *RoomStore) Delete(id int64) (*Mutation[domain.Room], error) {
	return s.remove(id, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	}, domain.MsgDeleteRoomFailed, domain.ErrRoomNotFound)
}
