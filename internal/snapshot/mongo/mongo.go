// Package mongo stores program snapshots in MongoDB.
//
// Import it for its side effect to make the "mongodb" storage type
// available to snapshot.Open.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lugondev/solana-guardian/internal/config"
	gerrors "github.com/lugondev/solana-guardian/internal/errors"
	"github.com/lugondev/solana-guardian/internal/snapshot"
	"github.com/lugondev/solana-guardian/pkg/types"
)

// CollectionName is the snapshot collection.
const CollectionName = "program_snapshots"

// Store is a snapshot.Store backed by a MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects, pings and creates indexes.
func New(ctx context.Context, cfg *config.MongoDBConfig) (*Store, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(CollectionName),
	}

	if err := store.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return store, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "program_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "upgrade_authority", Value: 1}},
		},
	})
	return err
}

// Get implements snapshot.Store.
func (s *Store) Get(ctx context.Context, id solana.PublicKey) (types.ProgramState, bool, error) {
	var m snapshot.Model
	err := s.collection.FindOne(ctx, bson.M{"program_id": id.String()}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.ProgramState{}, false, nil
	}
	if err != nil {
		return types.ProgramState{}, false, gerrors.StoreFailed("load snapshot for "+id.String(), err)
	}

	state, err := m.State()
	if err != nil {
		return types.ProgramState{}, false, err
	}
	return state, true, nil
}

// Put implements snapshot.Store.
//
// The filter only matches a document that is not newer than state. When the
// stored document is newer the upsert tries to insert a second document for
// the same program and the unique index rejects it; that is reported as
// stale.
func (s *Store) Put(ctx context.Context, id solana.PublicKey, state types.ProgramState) error {
	if err := ctx.Err(); err != nil {
		return gerrors.ErrContextCanceled.WithCause(err)
	}

	m := snapshot.ModelFromState(state)
	m.ProgramID = id.String()

	filter := bson.M{
		"program_id":  m.ProgramID,
		"observed_at": bson.M{"$lte": m.ObservedAt},
	}
	// Replace rather than $set so a renounced authority drops the field.
	_, err := s.collection.ReplaceOne(ctx, filter, m, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return gerrors.StoreFailed("save snapshot for "+id.String(), snapshot.ErrStaleSnapshot)
	}
	if err != nil {
		return gerrors.StoreFailed("save snapshot for "+id.String(), err)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close implements snapshot.Store.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
