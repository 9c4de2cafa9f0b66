// Package storage implements the document-store repositories.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/abhishekagnith/xpulse-agentflow-service/internal/infrastructure/logger"
)

// Collection names.
const (
	CollectionFlows         = "flows"
	CollectionUsers         = "users"
	CollectionUserContext   = "flow_user_context"
	CollectionNodeDetails   = "node_details"
	CollectionTransactions  = "user_transactions"
	CollectionDelays        = "delays"
	CollectionInboundEvents = "inbound_events"
)

// Config holds document store configuration
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// DefaultConfig returns default store configuration
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    50,
	}
}

// DB wraps the driver client and the service database handle.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewDB connects to the document store and verifies the connection.
func NewDB(cfg *Config) (*DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	logger.Default().Info("document store connection established",
		"database", cfg.Database,
		"max_pool_size", cfg.MaxPoolSize,
	)

	return &DB{client: client, db: client.Database(cfg.Database)}, nil
}

// Collection returns a handle to a named collection.
func (d *DB) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

// Ping verifies the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (d *DB) Close(ctx context.Context) error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	userKey := bson.D{
		{Key: "user_identifier", Value: 1},
		{Key: "brand_id", Value: 1},
		{Key: "channel", Value: 1},
		{Key: "channel_account_id", Value: 1},
	}

	indexes := map[string][]mongo.IndexModel{
		CollectionUsers: {
			{Keys: userKey, Options: options.Index().SetUnique(true)},
		},
		CollectionFlows: {
			{Keys: bson.D{{Key: "brand_id", Value: 1}, {Key: "status", Value: 1}, {Key: "updated_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		CollectionUserContext: {
			{Keys: bson.D{{Key: "user_state_id", Value: 1}, {Key: "flow_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollectionDelays: {
			{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "completes_at", Value: 1}}},
			{Keys: bson.D{{Key: "user_state_id", Value: 1}, {Key: "processed", Value: 1}}},
		},
		CollectionTransactions: {
			{Keys: bson.D{{Key: "flow_id", Value: 1}, {Key: "node_id", Value: 1}}},
		},
		CollectionInboundEvents: {
			{Keys: bson.D{{Key: "brand_id", Value: 1}, {Key: "received_at", Value: -1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := d.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", coll, err)
		}
	}

	return nil
}
