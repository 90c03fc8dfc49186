package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/userhub/userhub/internal/domain/user"
	"github.com/userhub/userhub/internal/observability"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already in use")
)

type UsersRepo struct {
	col     *mongo.Collection
	metrics *observability.Prom
}

func NewUsersRepo(db *mongo.Database, metrics *observability.Prom) *UsersRepo {
	return &UsersRepo{
		col:     db.Collection("users"),
		metrics: metrics,
	}
}

// EnsureIndexes creates the unique email index backing the uniqueness
// invariant. Safe to call on every startup.
func (r *UsersRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return err
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.metrics == nil {
		return fn()
	}

	return r.metrics.ObserveStore(op, fn)
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if u.Tokens == nil {
		u.Tokens = []string{}
	}

	err := r.observe("users.create", func() error {
		res, err := r.col.InsertOne(ctx, u)

		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrEmailTaken
			}

			return err
		}

		if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
			u.ID = oid
		}

		return nil
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id primitive.ObjectID) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)

		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return err
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&u)

		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return err
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	users := []user.User{}

	err := r.observe("users.list", func() error {
		cur, err := r.col.Find(ctx, bson.M{})

		if err != nil {
			return err
		}

		defer cur.Close(ctx)

		return cur.All(ctx, &users)
	})

	if err != nil {
		return nil, err
	}

	return users, nil
}

// Update applies the populated fields of req and returns the updated
// document. The password, when present, must already be hashed.
func (r *UsersRepo) Update(ctx context.Context, id primitive.ObjectID, req user.UpdateUserRequest) (user.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}

	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Password != nil {
		set["password"] = *req.Password
	}
	if req.Age != nil {
		set["age"] = *req.Age
	}

	var u user.User

	err := r.observe("users.update", func() error {
		err := r.col.FindOneAndUpdate(
			ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&u)

		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}

		return err
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) PushToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return r.observe("users.push_token", func() error {
		res, err := r.col.UpdateByID(ctx, id, bson.M{
			"$push": bson.M{"tokens": token},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		})

		if err != nil {
			return err
		}

		if res.MatchedCount == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

// PullToken removes exactly one token value; other sessions stay live.
func (r *UsersRepo) PullToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return r.observe("users.pull_token", func() error {
		res, err := r.col.UpdateByID(ctx, id, bson.M{
			"$pull": bson.M{"tokens": token},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		})

		if err != nil {
			return err
		}

		if res.MatchedCount == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

func (r *UsersRepo) ClearTokens(ctx context.Context, id primitive.ObjectID) error {
	return r.observe("users.clear_tokens", func() error {
		res, err := r.col.UpdateByID(ctx, id, bson.M{
			"$set": bson.M{"tokens": []string{}, "updatedAt": time.Now().UTC()},
		})

		if err != nil {
			return err
		}

		if res.MatchedCount == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

func (r *UsersRepo) SetAvatar(ctx context.Context, id primitive.ObjectID, png []byte) error {
	return r.observe("users.set_avatar", func() error {
		res, err := r.col.UpdateByID(ctx, id, bson.M{
			"$set": bson.M{"avatar": png, "updatedAt": time.Now().UTC()},
		})

		if err != nil {
			return err
		}

		if res.MatchedCount == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

func (r *UsersRepo) ClearAvatar(ctx context.Context, id primitive.ObjectID) error {
	return r.observe("users.clear_avatar", func() error {
		res, err := r.col.UpdateByID(ctx, id, bson.M{
			"$unset": bson.M{"avatar": ""},
			"$set":   bson.M{"updatedAt": time.Now().UTC()},
		})

		if err != nil {
			return err
		}

		if res.MatchedCount == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

// Delete removes the document and returns it, so the handler can echo the
// deleted record.
func (r *UsersRepo) Delete(ctx context.Context, id primitive.ObjectID) (user.User, error) {
	var u user.User

	err := r.observe("users.delete", func() error {
		err := r.col.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&u)

		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return err
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}
