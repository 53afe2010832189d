package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carebridge-wallet-ledger/internal/config"
	"github.com/go-redis/redis/v8"
)

// NewRedisClient connects to the shared throttle store and verifies it with a ping
func NewRedisClient(ctx context.Context, logger *slog.Logger, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Connected to Redis", "addr", cfg.Addr)
	return client, nil
}
