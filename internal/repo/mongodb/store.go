package mongodb

import (
	"context"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	sessionsCollection = "sessions"
)

// Store owns the client connection shared by the repositories.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", "mongo").Wrap(err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, oops.Code("DB_CONNECT_FAILED").With("driver", "mongo").With("operation", "ping").Wrap(err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique email index and the session lookup indexes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_key"),
	})
	if err != nil {
		return oops.Code("INDEX_CREATE_FAILED").With("collection", usersCollection).Wrap(err)
	}

	_, err = db.Collection(sessionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("sessions_created_at_idx")},
		{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("sessions_tags_idx")},
		{Keys: bson.D{{Key: "goal.id", Value: 1}}, Options: options.Index().SetName("sessions_goal_id_idx")},
	})
	if err != nil {
		return oops.Code("INDEX_CREATE_FAILED").With("collection", sessionsCollection).Wrap(err)
	}

	return nil
}
