package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/infrastructure/auth"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// ProfileRepository reads user profiles and sign-in credentials from "users".
type ProfileRepository struct {
	col *mongo.Collection
}

var (
	_ ports.ProfileRepository = (*ProfileRepository)(nil)
	_ auth.CredentialStore    = (*ProfileRepository)(nil)
)

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{col: db.Collection(collectionUsers)}
}

func (r *ProfileRepository) FindProfile(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var u domain.User
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, backendError("users.find", err, domain.ErrUserNotFound)
	}
	if err := validate.Payload(u); err != nil {
		return nil, backendError("users.find", err, nil)
	}
	return &u, nil
}

func (r *ProfileRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	fields := bson.M{}
	if update.Name != nil {
		fields["name"] = *update.Name
	}
	if update.Email != nil {
		fields["email"] = *update.Email
	}
	if update.ProfilePicture != nil {
		fields["profile_picture"] = *update.ProfilePicture
	}
	if update.SampulImg != nil {
		fields["sampul_img"] = *update.SampulImg
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, setFields(fields, time.Now().UTC()))
	if err != nil {
		return nil, backendError("users.update", err, nil)
	}
	if res.MatchedCount == 0 {
		return nil, backendError("users.update", mongo.ErrNoDocuments, domain.ErrUserNotFound)
	}
	return r.FindProfile(ctx, id)
}

// FindCredentials returns the stored password hash for email.
func (r *ProfileRepository) FindCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc struct {
		ID           string `bson:"_id"`
		Email        string `bson:"email"`
		PasswordHash string `bson:"password_hash"`
	}
	if err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		return nil, backendError("users.credentials", err, domain.ErrUserNotFound)
	}
	return &auth.Credentials{UserID: doc.ID, Email: doc.Email, PasswordHash: doc.PasswordHash}, nil
}
