// Package cache keeps dashboard counts in Redis between writes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/fruitstock/internal/domain/models"
)

const countsKey = "fruitstock:dash:counts"

// CountsCache stores models.Counts as JSON under a single key.
type CountsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCountsCache creates a cache that expires entries after ttl.
func NewCountsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *CountsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CountsCache{client: client, ttl: ttl, logger: logger}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// GetCounts reports a miss with ok=false.
func (c *CountsCache) GetCounts(ctx context.Context) (models.Counts, bool, error) {
	data, err := c.client.Get(ctx, countsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("counts cache miss")
		return models.Counts{}, false, nil
	}
	if err != nil {
		return models.Counts{}, false, fmt.Errorf("redis get error: %w", err)
	}

	var counts models.Counts
	if err := json.Unmarshal(data, &counts); err != nil {
		return models.Counts{}, false, fmt.Errorf("unmarshal counts: %w", err)
	}
	return counts, true, nil
}

// SetCounts stores counts with the configured TTL.
func (c *CountsCache) SetCounts(ctx context.Context, counts models.Counts) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}
	if err := c.client.Set(ctx, countsKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	c.logger.Debug("counts cached", zap.Duration("ttl", c.ttl))
	return nil
}

// Invalidate drops the cached counts.
func (c *CountsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, countsKey).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}
