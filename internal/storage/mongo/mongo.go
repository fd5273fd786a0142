// Package mongo implements the storage contract over a MongoDB database.
//
// Relational guarantees are emulated: uniqueness is pre-check-then-insert
// under a unique index (duplicate-key races surface as conflicts),
// referential checks are explicit reads, and finalizing the active entry is
// a single find-and-update so the single-active invariant holds without
// multi-document transactions.
package mongo

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrlokans/tempo/internal/storage"
)

const connectTimeout = 10 * time.Second

// Store is the document storage.Provider implementation.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ storage.Provider = (*Store)(nil)

// Open connects to MongoDB, verifies the connection and ensures the unique
// indexes the contract relies on.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	store := &Store{client: client, db: client.Database(database)}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Printf("mongo store: connected to %s", database)
	return store, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) users() *mongo.Collection         { return s.db.Collection("users") }
func (s *Store) categories() *mongo.Collection    { return s.db.Collection("categories") }
func (s *Store) entries() *mongo.Collection       { return s.db.Collection("time_entries") }
func (s *Store) refreshTokens() *mongo.Collection { return s.db.Collection("refresh_tokens") }
func (s *Store) resetTokens() *mongo.Collection   { return s.db.Collection("password_reset_tokens") }
func (s *Store) settings() *mongo.Collection      { return s.db.Collection("user_settings") }

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := s.users().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
	})
	if err != nil {
		return err
	}

	_, err = s.categories().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "name", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return err
	}

	_, err = s.entries().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start_time", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "end_time", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "task_name", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = s.refreshTokens().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
	})
	if err != nil {
		return err
	}

	_, err = s.resetTokens().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: unique,
	})
	return err
}
