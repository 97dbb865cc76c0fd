package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRecord struct {
	ID        string    `bson:"_id"`
	Data      string    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type MongoStore struct {
	collection *mongo.Collection
	lifetime   time.Duration
}

func NewMongoStore(db *mongo.Database, lifetime time.Duration) *MongoStore {
	return &MongoStore{
		collection: db.Collection("sessions"),
		lifetime:   lifetime,
	}
}

// EnsureIndexes installs a TTL index so the server eventually reaps dead rows.
// Get still checks expiry itself because the TTL monitor runs only once a minute.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName("sessions_expires_at_ttl"),
	})
	if err != nil {
		return fmt.Errorf("failed to create sessions ttl index: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Record, error) {
	var rec mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	now := time.Now().UTC()
	if !rec.ExpiresAt.After(now) {
		_, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "expires_at": bson.M{"$lte": now}})
		if err != nil {
			return nil, unavailable(err)
		}
		return nil, ErrNotFound
	}

	data, err := decodeData([]byte(rec.Data))
	if err != nil {
		if _, delErr := s.collection.DeleteOne(ctx, bson.M{"_id": id}); delErr != nil {
			return nil, unavailable(delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	return &Record{ID: id, Data: data, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *MongoStore) Create(ctx context.Context, id string, data Data) error {
	raw, err := encodeData(data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.collection.InsertOne(ctx, mongoRecord{
		ID:        id,
		Data:      string(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return unavailable(err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id string, data Data) error {
	raw, err := encodeData(data)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id, "expires_at": bson.M{"$gt": now}},
		bson.M{"$set": bson.M{"data": string(raw), "expires_at": now.Add(s.lifetime)}},
	)
	if err != nil {
		return unavailable(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *MongoStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	if err != nil {
		return 0, unavailable(err)
	}
	return res.DeletedCount, nil
}
