package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/agora-community/agora/pkg/config"
	"github.com/agora-community/agora/pkg/logging"
)

const (
	keyPrefix     = "agora:"
	localCapacity = 1024
)

// Cache stores short-lived JSON values in Redis. When Redis is disabled it
// keeps them in an in-process LRU instead.
type Cache struct {
	client *redis.Client
	local  *expirable.LRU[string, []byte]
	logger *zap.Logger
}

// New creates a cache. localTTL bounds entries held by the in-process fallback.
func New(cfg *config.RedisConfig, localTTL time.Duration) (*Cache, error) {
	logger := logging.WithComponent("cache")

	if !cfg.Enabled {
		logger.Info("Redis cache disabled, using in-process cache")
		return NewLocal(localTTL), nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")

	return &Cache{client: client, logger: logger}, nil
}

// NewLocal creates a cache backed only by the in-process LRU
func NewLocal(ttl time.Duration) *Cache {
	return &Cache{
		local:  expirable.NewLRU[string, []byte](localCapacity, nil, ttl),
		logger: logging.WithComponent("cache"),
	}
}

// HashKey builds a fixed-length key from arbitrary parts
func HashKey(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) namespaceKey(key string) string {
	return keyPrefix + key
}

// Get retrieves a raw value. A miss returns ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil {
		return nil, ErrCacheDisabled
	}
	key = c.namespaceKey(key)

	if c.client == nil {
		v, ok := c.local.Get(key)
		if !ok {
			return nil, ErrMiss
		}
		return v, nil
	}

	v, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return v, err
}

// Set stores a raw value. The in-process fallback ignores ttl in favour of the
// TTL it was created with.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c == nil {
		return ErrCacheDisabled
	}
	key = c.namespaceKey(key)

	if c.client == nil {
		c.local.Add(key, value)
		return nil
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key from cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil {
		return ErrCacheDisabled
	}
	key = c.namespaceKey(key)

	if c.client == nil {
		c.local.Remove(key)
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// GetJSON decodes a cached value into dst. It reports false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := c.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *Cache) Health(ctx context.Context) error {
	if c == nil {
		return ErrCacheDisabled
	}
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

var (
	// ErrCacheDisabled is returned when cache operations are attempted on a nil cache
	ErrCacheDisabled = errors.New("cache is disabled")
	// ErrMiss is returned when a key is absent or expired
	ErrMiss = errors.New("cache miss")
)
