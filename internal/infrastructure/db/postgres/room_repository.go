package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// RoomRepository stores rooms in "ruangans" joined with their owner in "users".
type RoomRepository struct {
	db DB
}

var _ ports.RoomRepository = (*RoomRepository)(nil)

func NewRoomRepository(db DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// roomColumns selects a room row aliased r, joined with users aliased u.
const roomColumns = `r.id, coalesce(r.user_id::text, ''), r.name, r.header_img, r.created_at, r.updated_at,
  u.name, u.role, u.profile_picture`

func (r *RoomRepository) List(ctx context.Context, filter ports.RoomFilter) ([]domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	q := `select ` + roomColumns + `
from ruangans r
left join users u on u.id = r.user_id`
	var args []any
	if filter.OwnerID != "" {
		q += ` where r.user_id = $1::uuid`
		args = append(args, filter.OwnerID)
	}
	q += ` order by r.created_at desc, r.id desc`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, backendError("ruangans.list", err, nil)
	}
	rooms, err := pgx.CollectRows(rows, rowTo(scanRoom))
	if err != nil {
		return nil, backendError("ruangans.list", err, nil)
	}
	return rooms, nil
}

func (r *RoomRepository) Insert(ctx context.Context, input domain.RoomInput) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	const q = `with r as (
  insert into ruangans (user_id, name, header_img)
  values (nullif($1, '')::uuid, $2, $3)
  returning *
)
select ` + roomColumns + `
from r
left join users u on u.id = r.user_id`

	room, err := scanRoom(r.db.QueryRow(ctx, q, input.UserID, input.Name, input.HeaderImg))
	if err != nil {
		return nil, backendError("ruangans.insert", err, nil)
	}
	return &room, nil
}

func (r *RoomRepository) Update(ctx context.Context, id int64, patch domain.RoomPatch) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var set setList
	if patch.UserID != nil {
		set.add("user_id", *patch.UserID)
	}
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.HeaderImg != nil {
		set.add("header_img", *patch.HeaderImg)
	}
	update, args := set.update("ruangans", "id", id)
	q := `with r as (` + update + `)
select ` + roomColumns + `
from r
left join users u on u.id = r.user_id`

	room, err := scanRoom(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, backendError("ruangans.update", err, domain.ErrRoomNotFound)
	}
	return &room, nil
}

// Delete removes the room. Deleting a room that is already gone succeeds.
func (r *RoomRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.db.Exec(ctx, `delete from ruangans where id = $1`, id); err != nil {
		return backendError("ruangans.delete", err, nil)
	}
	return nil
}

func scanRoom(row pgx.Row) (domain.Room, error) {
	var (
		room      domain.Room
		ownerName *string
		ownerRole *string
		ownerPic  *string
	)
	err := row.Scan(&room.ID, &room.UserID, &room.Name, &room.HeaderImg, &room.CreatedAt, &room.UpdatedAt,
		&ownerName, &ownerRole, &ownerPic)
	if err != nil {
		return domain.Room{}, err
	}
	if ownerName != nil {
		room.User = &domain.RoomOwner{Name: *ownerName, ProfilePicture: ownerPic}
		if ownerRole != nil {
			room.User.Role = domain.Role(*ownerRole)
		}
	}
	if err := validate.Payload(room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}
