package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/hypnohub/internal/domain/user"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type UsersRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewUsersRepo(db *mongo.Database, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{coll: db.Collection(usersCollection), prom: prom}
}

// Create relies on the unique email index for duplicate detection.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	u.Email = user.NormalizeEmail(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now

	err := r.prom.ObserveDB("users.create", func() error {
		_, err := r.coll.InsertOne(ctx, u)
		return err
	})

	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, oops.Code("USER_CREATE_FAILED").With("email", u.Email).Wrap(err)
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.M{"email": user.NormalizeEmail(email)})
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_id", bson.M{"_id": id})
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB(op, func() error {
		return r.coll.FindOne(ctx, filter).Decode(&u)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, oops.Code("USER_LOOKUP_FAILED").With("op", op).Wrap(err)
	}
	if !u.Role.IsValid() {
		return user.User{}, oops.Code("USER_ROLE_INVALID").With("op", op).With("user_id", u.ID).Errorf("unknown role %q", u.Role)
	}
	return u, nil
}
