// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/njcabinets/sales-backend/internal/config"
)

// ErrCacheMiss indicates the key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// Store is a small read-through cache for catalog and manufacturer lookups.
// A nil *Store is valid and behaves as a permanent miss, so callers degrade
// gracefully when Redis is not configured.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis if enabled; returns nil (cache disabled) otherwise.
func New(cfg config.RedisConfig) *Store {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Redis unavailable; catalog cache disabled")
		return nil
	}

	return &Store{
		client: client,
		ttl:    time.Duration(cfg.CatalogTTL) * time.Second,
	}
}

func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if s == nil {
		return ErrCacheMiss
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("cache get %s: %w", key, err)
	}

	return json.Unmarshal(raw, dest)
}

func (s *Store) SetJSON(ctx context.Context, key string, value interface{}) error {
	if s == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}

	return s.client.Set(ctx, key, raw, s.ttl).Err()
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if s == nil || len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
