package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the MongoDB backend.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to uri, pings the server and ensures the indexes
// the services rely on.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("store: mongo uri is not set")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Info().Str("database", database).Msg("Connected to MongoDB")

	s := &MongoStore{client: client, db: client.Database(database)}
	s.ensureIndexes(ctx)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) {
	nonEmptyEmail := bson.M{"email": bson.M{"$type": "string", "$gt": ""}}
	indexes := map[string][]mongo.IndexModel{
		Users: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmptyEmail)},
			{Keys: bson.D{{Key: "access_token", Value: 1}}},
		},
		Groups:  {{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}},
		Invites: {{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)}},
		Beacons: {{Keys: bson.D{{Key: "room_id", Value: 1}}}},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			log.Warn().Err(err).Str("collection", name).Msg("Failed to create indexes")
		}
	}
}

func (s *MongoStore) collection(name string) (*mongo.Collection, error) {
	if name == "" {
		return nil, ErrNoCollection
	}
	return s.db.Collection(name), nil
}

func filter(q Query) bson.M {
	f := bson.M{}
	for k, v := range q {
		f[k] = v
	}
	return f
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func (s *MongoStore) Insert(ctx context.Context, collection string, doc any) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	_, err = c.InsertOne(ctx, doc)
	return translate(err)
}

func (s *MongoStore) Remove(ctx context.Context, collection string, q Query) (int64, error) {
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	res, err := c.DeleteMany(ctx, filter(q))
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Update(ctx context.Context, collection string, q Query, u Update) (int64, error) {
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	if u.IsEmpty() {
		return 0, ErrEmptyUpdate
	}
	res, err := c.UpdateOne(ctx, filter(q), u.document())
	if err != nil {
		return 0, translate(err)
	}
	return res.MatchedCount, nil
}

func (s *MongoStore) Upsert(ctx context.Context, collection string, q Query, doc any) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	_, err = c.ReplaceOne(ctx, filter(q), doc, options.Replace().SetUpsert(true))
	return translate(err)
}

func (s *MongoStore) Find(ctx context.Context, collection string, q Query) ([]bson.Raw, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	cursor, err := c.Find(ctx, filter(q))
	if err != nil {
		return nil, translate(err)
	}
	defer cursor.Close(ctx)

	var docs []bson.Raw
	for cursor.Next(ctx) {
		// cursor.Current is reused by the next call
		docs = append(docs, append(bson.Raw(nil), cursor.Current...))
	}
	return docs, cursor.Err()
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, q Query) (bson.Raw, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	raw, err := c.FindOne(ctx, filter(q)).Raw()
	if err != nil {
		return nil, translate(err)
	}
	return raw, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
