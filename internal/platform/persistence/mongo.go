package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carebridge-wallet-ledger/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoDB holds the client behind the wallet activity feed
type MongoDB struct {
	logger   *slog.Logger
	client   *mongo.Client
	database *mongo.Database
	timeout  time.Duration
}

// activityClientOptions builds the driver options for cfg. Writes wait for a majority ack.
func activityClientOptions(cfg *config.MongoDBConfig) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetServerSelectionTimeout(cfg.Timeout).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority())
}

// NewMongoDB connects and verifies the primary is reachable within cfg.Timeout
func NewMongoDB(ctx context.Context, logger *slog.Logger, cfg *config.MongoDBConfig) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, activityClientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	db := &MongoDB{
		logger:   logger,
		client:   client,
		database: client.Database(cfg.Database),
		timeout:  cfg.Timeout,
	}
	if err := db.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info("Connected to MongoDB",
		"database", cfg.Database,
		"max_pool_size", cfg.MaxPoolSize,
	)
	return db, nil
}

// Ping checks the primary, bounded by the configured timeout
func (m *MongoDB) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

func (m *MongoDB) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	m.logger.Info("Closed MongoDB connection", "database", m.database.Name())
	return nil
}
