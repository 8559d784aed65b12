package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/infrastructure/auth"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// ProfileRepository reads user profiles and sign-in credentials from "users".
type ProfileRepository struct {
	db DB
}

var (
	_ ports.ProfileRepository = (*ProfileRepository)(nil)
	_ auth.CredentialStore    = (*ProfileRepository)(nil)
)

func NewProfileRepository(db DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id::text, name, email, profile_picture, sampul_img, role, created_at, updated_at`

func (r *ProfileRepository) FindProfile(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	const q = `select ` + profileColumns + ` from users where id = $1::uuid`
	u, err := scanUser(r.db.QueryRow(ctx, q, id))
	if err != nil {
		return nil, backendError("users.find", err, domain.ErrUserNotFound)
	}
	return u, nil
}

func (r *ProfileRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var set setList
	if update.Name != nil {
		set.add("name", *update.Name)
	}
	if update.Email != nil {
		set.add("email", *update.Email)
	}
	if update.ProfilePicture != nil {
		set.add("profile_picture", *update.ProfilePicture)
	}
	if update.SampulImg != nil {
		set.add("sampul_img", *update.SampulImg)
	}
	q, args := set.update("users", "id", id)
	q = `with u as (` + q + `) select ` + profileColumns + ` from u`

	u, err := scanUser(r.db.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, backendError("users.update", err, domain.ErrUserNotFound)
	}
	return u, nil
}

// FindCredentials returns the stored password hash for email.
func (r *ProfileRepository) FindCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c auth.Credentials
	err := r.db.QueryRow(ctx, `select id::text, email, password_hash from users where email = $1`, email).
		Scan(&c.UserID, &c.Email, &c.PasswordHash)
	if err != nil {
		return nil, backendError("users.credentials", err, domain.ErrUserNotFound)
	}
	return &c, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.ProfilePicture, &u.SampulImg, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	if err := validate.Payload(u); err != nil {
		return nil, err
	}
	return &u, nil
}
