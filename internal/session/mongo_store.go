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

const collectionName = "sessions"

type sessionDocument struct {
	ID        string    `bson:"_id"`
	Data      string    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps sessions in one collection. A TTL index on updated_at
// lets the server expire idle sessions.
type MongoStore struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewMongoStore(ctx context.Context, db *mongo.Database, ttl time.Duration) (*MongoStore, error) {
	ttl = ttlOrDefault(ttl)
	collection := db.Collection(collectionName)

	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
	}
	if _, err := collection.Indexes().CreateOne(ctx, index); err != nil {
		return nil, fmt.Errorf("create session ttl index: %w", err)
	}

	return &MongoStore{collection: collection, ttl: ttl}, nil
}

func (m *MongoStore) Load(ctx context.Context, id string) (*State, error) {
	var doc sessionDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	// the ttl monitor runs about once a minute, so check expiry here too
	if time.Since(doc.UpdatedAt) > m.ttl {
		return nil, ErrSessionNotFound
	}
	return Decode(doc.ID, []byte(doc.Data))
}

func (m *MongoStore) Save(ctx context.Context, s *State) error {
	raw, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	update := bson.M{"$set": bson.M{
		"data":       string(raw),
		"updated_at": time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": s.ID()}, update, opts); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
