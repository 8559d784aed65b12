package domain

import "time"

// Role is the closed set of session roles.
type Role string

const (
	// RoleAdmin is the privileged role: sees every room and asset.
	RoleAdmin Role = "admin"
	// RoleOperator is the restricted role: sees only the rooms assigned to it.
	RoleOperator Role = "operator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOperator
}

// User is the profile of the acting session.
type User struct {
	ID             string    `json:"id" bson:"_id" validate:"required"`
	Name           string    `json:"name" bson:"name"`
	Email          string    `json:"email" bson:"email"`
	ProfilePicture *string   `json:"profile_picture,omitempty" bson:"profile_picture,omitempty"`
	SampulImg      *string   `json:"sampul_img,omitempty" bson:"sampul_img,omitempty"`
	Role           Role      `json:"role" bson:"role" validate:"oneof=admin operator"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

// IsAdmin reports whether the user holds the privileged role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsOperator reports whether the user holds the restricted role.
func (u *User) IsOperator() bool {
	return u != nil && u.Role == RoleOperator
}

// ProfileUpdate carries the profile fields a user may change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email          *string `json:"email,omitempty" validate:"omitempty,email"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
	SampulImg      *string `json:"sampul_img,omitempty"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.ProfilePicture == nil && p.SampulImg == nil
}

// Access describes what a protected resource requires from the session.
type Access struct {
	RequiresAuth  bool
	RequiresAdmin bool
}
