package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maltedev/catawiki-seller-parser/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the Redis client used by the cache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// ProfileCache stores extracted profiles keyed by the hash of the source
// document. Extraction is deterministic, so a hit is always valid.
type ProfileCache struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

func NewProfileCache(client RedisClient, prefix string, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *ProfileCache) key(sourceHash string) string {
	return c.prefix + sourceHash
}

// Get returns the cached profile and true, or nil and false on a miss.
func (c *ProfileCache) Get(ctx context.Context, sourceHash string) (*models.SellerProfile, bool, error) {
	data, err := c.client.Get(ctx, c.key(sourceHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached profile: %w", err)
	}

	profile := models.NewSellerProfile()
	if err := json.Unmarshal(data, profile); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached profile: %w", err)
	}

	return profile, true, nil
}

func (c *ProfileCache) Set(ctx context.Context, sourceHash string, profile *models.SellerProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	if err := c.client.Set(ctx, c.key(sourceHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}

	return nil
}
