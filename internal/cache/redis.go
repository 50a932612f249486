package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vitals-triage-server/internal/domain"
)

const profileKeyPrefix = "vitals:profile:"

// RedisCache shares profiles between server instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// cachedProfile is the stored envelope.
type cachedProfile struct {
	Profile  *domain.PatientProfile `json:"profile"`
	CachedAt time.Time              `json:"cached_at"`
}

// NewRedisCache connects to the Redis instance named in config and pings it.
func NewRedisCache(ctx context.Context, config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("Redis profile cache connected")
	return NewRedisCacheFromClient(client, config.DefaultTTL, logger), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl, log: logger}
}

func profileKey(patientID string) string {
	return profileKeyPrefix + patientID
}

// Get reads a profile. Corrupt values are deleted and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, patientID string) (*domain.PatientProfile, bool, error) {
	key := profileKey(patientID)

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached profile: %w", err)
	}

	var cached cachedProfile
	if err := json.Unmarshal(val, &cached); err != nil || cached.Profile == nil {
		c.log.WithField("key", key).Warn("Removing corrupted profile cache entry")
		c.client.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Profile, true, nil
}

// Set writes a profile with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, profile *domain.PatientProfile) error {
	data, err := json.Marshal(cachedProfile{Profile: profile, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := c.client.Set(ctx, profileKey(profile.PatientID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// Delete removes a profile.
func (c *RedisCache) Delete(ctx context.Context, patientID string) error {
	if err := c.client.Del(ctx, profileKey(patientID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached profile: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
