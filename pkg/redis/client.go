// Package redis wraps the Redis Pub/Sub channel the exporter publishes
// block-indexed notifications on. The query app uses it to nudge the state
// tracker between timer ticks; everything here is best-effort.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/chainview-network/chainview/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps the Redis client for real-time chain-head notifications.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// NewClient creates a new Redis client using environment variables for
// configuration:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: "0")
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", addr),
		zap.Int("db", db))

	return &Client{
		client: rdb,
		logger: logger,
	}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// BlockIndexedChannel is the Pub/Sub channel the exporter publishes on
// after committing a block.
func BlockIndexedChannel(chainID string) string {
	return fmt.Sprintf("chainview:%s:block.indexed", chainID)
}

// ListenBlockIndexed subscribes to the chain's block-indexed channel and
// invokes fn for every notification until the context is cancelled. The
// payload is ignored; the notification is only a freshness nudge.
func (c *Client) ListenBlockIndexed(ctx context.Context, chainID string, fn func()) {
	channel := BlockIndexedChannel(chainID)
	pubsub := c.client.Subscribe(ctx, channel)
	defer func() { _ = pubsub.Close() }()

	c.logger.Debug("Subscribed to block-indexed channel", zap.String("channel", channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			fn()
		}
	}
}
