package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	RedisClient *redis.Client
	ctx         = context.Background()

	ErrUnavailable = errors.New("redis not available")
	ErrCacheMiss   = errors.New("cache miss")
)

// InitRedis initializes Redis connection
func InitRedis(addr, password string) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password, // пустой если нет пароля
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(pingCtx).Result(); err != nil {
		RedisClient = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// CloseRedis closes Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// IsRedisAvailable checks if Redis is connected
func IsRedisAvailable() bool {
	if RedisClient == nil {
		return false
	}
	_, err := RedisClient.Ping(ctx).Result()
	return err == nil
}

// ==================== CACHE KEYS ====================

const (
	// Catalog relay responses: catalog:<sha256(path+body)>
	CatalogCachePrefix = "catalog:"

	// Rate limiting: ratelimit:<scope>:<subject>
	RateLimitPrefix = "ratelimit:"

	CatalogTTL = 10 * time.Minute
)

// ==================== GENERIC CACHE OPERATIONS ====================

// Set stores any value in cache with TTL
func Set(key string, value interface{}, ttl time.Duration) error {
	if !IsRedisAvailable() {
		return ErrUnavailable
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return RedisClient.Set(ctx, key, data, ttl).Err()
}

// Get retrieves value from cache
func Get(key string, dest interface{}) error {
	if !IsRedisAvailable() {
		return ErrUnavailable
	}

	val, err := RedisClient.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("failed to get value: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

// ==================== CATALOG CACHING ====================

// CatalogKey identifies a relayed catalog query.
func CatalogKey(path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return CatalogCachePrefix + hex.EncodeToString(h.Sum(nil))
}

// GetCatalogResponse returns a cached raw upstream body.
func GetCatalogResponse(path string, body []byte) ([]byte, error) {
	var raw json.RawMessage
	if err := Get(CatalogKey(path, body), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SetCatalogResponse caches a raw upstream JSON body for CatalogTTL.
func SetCatalogResponse(path string, body, response []byte) error {
	if !json.Valid(response) {
		return fmt.Errorf("refusing to cache non-JSON catalog response")
	}
	return Set(CatalogKey(path, body), json.RawMessage(response), CatalogTTL)
}

// ==================== RATE LIMITING ====================

// CheckRateLimit implements a fixed-window counter per key
func CheckRateLimit(key string, maxRequests int, window time.Duration) (bool, int, error) {
	if !IsRedisAvailable() {
		return true, maxRequests, nil // Allow if Redis unavailable
	}

	key = RateLimitPrefix + key

	count, err := RedisClient.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := RedisClient.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, err
		}
	}

	remaining := maxRequests - int(count)
	if remaining < 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}
