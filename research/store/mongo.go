package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	errs "github.com/sweetpotato0/deepresearch/errors"
	"github.com/sweetpotato0/deepresearch/research"
)

// Mongo stores session snapshots in a MongoDB collection, upserting by
// session ID.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration // connect and ping timeout
}

// DefaultMongoConfig returns the default MongoDB configuration.
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "deepresearch",
		Collection: "sessions",
		Timeout:    10 * time.Second,
	}
}

// sessionDoc is the collection document. The full session rides along as a
// JSON snapshot; query, status and timestamps are lifted out for indexing
// and inspection.
type sessionDoc struct {
	ID        string    `bson:"_id"`
	Query     string    `bson:"query"`
	Status    string    `bson:"status"`
	Snapshot  []byte    `bson:"snapshot"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongo connects to MongoDB and returns a session store. A nil config
// selects localhost defaults.
func NewMongo(config *MongoConfig) (*Mongo, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &Mongo{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}
	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

func (s *Mongo) createIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	}
	_, err := s.collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// Save stores a snapshot of the session, replacing any previous one.
func (s *Mongo) Save(ctx context.Context, session *research.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session must have an ID", errs.ErrInvalidInput)
	}

	snapshot, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	doc := sessionDoc{
		ID:        session.ID,
		Query:     session.Query,
		Status:    string(session.Status),
		Snapshot:  snapshot,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": session.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to store session in MongoDB: %w", err)
	}
	return nil
}

// Load returns the stored session.
func (s *Mongo) Load(ctx context.Context, id string) (*research.Session, error) {
	var doc sessionDoc
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("session %s: %w", id, errs.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session research.Session
	if err := json.Unmarshal(doc.Snapshot, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// List returns all stored session IDs, newest first.
func (s *Mongo) List(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"_id": 1})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode session IDs: %w", err)
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// Delete removes a stored session. Deleting an unknown ID is not an error.
func (s *Mongo) Delete(ctx context.Context, id string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping checks the MongoDB connection.
func (s *Mongo) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (s *Mongo) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Disconnect(ctx)
}
