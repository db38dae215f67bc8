package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/hypnohub/internal/domain/session"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionsRepo struct {
	coll *mongo.Collection
	prom *observability.Prom
}

func NewSessionsRepo(db *mongo.Database, prom *observability.Prom) *SessionsRepo {
	return &SessionsRepo{coll: db.Collection(sessionsCollection), prom: prom}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (r *SessionsRepo) Create(ctx context.Context, s session.Session) (session.Session, error) {
	// BSON dates carry millisecond precision
	s.CreatedAt = s.CreatedAt.Truncate(time.Millisecond)
	s.UpdatedAt = s.UpdatedAt.Truncate(time.Millisecond)

	err := r.prom.ObserveDB("sessions.create", func() error {
		_, err := r.coll.InsertOne(ctx, s)
		return err
	})

	if err != nil {
		return session.Session{}, oops.Code("SESSION_CREATE_FAILED").With("session_id", s.ID).Wrap(err)
	}
	return s, nil
}

func (r *SessionsRepo) List(ctx context.Context) ([]session.Session, error) {
	return r.find(ctx, "sessions.list", bson.M{})
}

func (r *SessionsRepo) ListByGoalID(ctx context.Context, goalID string) ([]session.Session, error) {
	return r.find(ctx, "sessions.list_by_goal", bson.M{"goal.id": goalID})
}

func (r *SessionsRepo) ListByTags(ctx context.Context, tags []string) ([]session.Session, error) {
	return r.find(ctx, "sessions.list_by_tags", bson.M{"tags": bson.M{"$in": tags}})
}

func (r *SessionsRepo) GetByID(ctx context.Context, id string) (session.Session, error) {
	var s session.Session

	err := r.prom.ObserveDB("sessions.get", func() error {
		return r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, oops.Code("SESSION_LOOKUP_FAILED").With("session_id", id).Wrap(err)
	}
	return s, nil
}

// Update applies the patch with a single $set and returns the new document.
func (r *SessionsRepo) Update(ctx context.Context, id string, p session.Patch) (session.Session, error) {
	set := bson.M{"updatedAt": time.Now().UTC().Truncate(time.Millisecond)}
	for k, v := range p.Fields() {
		set[k] = v
	}

	var s session.Session
	err := r.prom.ObserveDB("sessions.update", func() error {
		return r.coll.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&s)
	})

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, oops.Code("SESSION_UPDATE_FAILED").With("session_id", id).Wrap(err)
	}
	return s, nil
}

func (r *SessionsRepo) Delete(ctx context.Context, id string) error {
	var deleted int64

	err := r.prom.ObserveDB("sessions.delete", func() error {
		res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})

	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("session_id", id).Wrap(err)
	}
	if deleted == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (r *SessionsRepo) find(ctx context.Context, op string, filter bson.M) ([]session.Session, error) {
	out := []session.Session{}

	err := r.prom.ObserveDB(op, func() error {
		cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(newestFirst))
		if err != nil {
			return err
		}
		return cur.All(ctx, &out)
	})

	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").With("op", op).Wrap(err)
	}
	return out, nil
}
