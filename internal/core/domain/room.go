package domain

import (
	"sync/atomic"
	"time"
)

// RoomOwner is the denormalized snapshot of the user a room is assigned to.
type RoomOwner struct {
	Name           string  `json:"name" bson:"name"`
	Role           Role    `json:"role" bson:"role"`
	ProfilePicture *string `json:"profile_picture,omitempty" bson:"profile_picture,omitempty"`
}

// Room ("ruangan") is a physical room that holds assets.
type Room struct {
	ID        int64      `json:"id" bson:"_id" validate:"gt=0"`
	UserID    string     `json:"user_id" bson:"user_id"`
	Name      string     `json:"name" bson:"name" validate:"required"`
	HeaderImg *string    `json:"header_img,omitempty" bson:"header_img,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
	User      *RoomOwner `json:"user,omitempty" bson:"user,omitempty"`
}

// RoomInput is the caller-supplied part of a new room.
type RoomInput struct {
	UserID    string  `json:"user_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	HeaderImg *string `json:"header_img,omitempty"`
}

// RoomPatch is a partial room update. Nil fields are left untouched.
type RoomPatch struct {
	UserID    *string `json:"user_id,omitempty" validate:"omitempty,min=1"`
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1"`
	HeaderImg *string `json:"header_img,omitempty"`
}

// Apply returns a copy of r with the patch merged in.
func (p RoomPatch) Apply(r Room) Room {
	if p.UserID != nil {
		r.UserID = *p.UserID
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.HeaderImg != nil {
		r.HeaderImg = p.HeaderImg
	}
	return r
}

var lastTempRoomID atomic.Int64

func init() {
	lastTempRoomID.Store(-time.Now().UnixMilli())
}

// NewTemporaryRoomID returns a negative id that is unique within the process.
// Server ids are always positive.
func NewTemporaryRoomID() int64 {
	return lastTempRoomID.Add(-1)
}

// IsTemporaryRoomID reports whether id was synthesized locally.
func IsTemporaryRoomID(id int64) bool {
	return id < 0
}
