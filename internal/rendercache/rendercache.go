/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rendercache provides a content-addressed index of finished audio
// renders so identical (media, filter signature) pairs reuse one artifact.
package rendercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "munin:render:"

// DefaultTTL bounds how long the shared Redis index remembers a render.
const DefaultTTL = 24 * time.Hour

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration

	// DisableOnError trips the circuit breaker on the first Redis failure.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		TTL:            DefaultTTL,
		DisableOnError: true,
	}
}

// Cache indexes finished renders. The in-process map is always authoritative;
// Redis, when reachable, shares entries across restarts.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	local    map[string]string
	disabled bool
}

// Key derives the content address for a (media identity, filter signature)
// pair. Identical pairs always map to the same key.
func Key(mediaID, filterSignature string) string {
	sum := sha256.Sum256([]byte(mediaID + "\x00" + filterSignature))
	return hex.EncodeToString(sum[:])
}

// New creates a cache. Redis being unreachable is not fatal; the cache runs
// on the local index alone.
func New(cfg Config, logger zerolog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	c := &Cache{
		logger: logger.With().Str("component", "rendercache").Logger(),
		config: cfg,
		local:  make(map[string]string),
	}

	if cfg.RedisAddr == "" {
		c.disabled = true
		return c
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Redis unavailable, render cache is process-local")
		c.disabled = true
		return c
	}

	c.client = client
	c.logger.Info().Str("addr", cfg.RedisAddr).Msg("render cache index initialized")
	return c
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Get returns the artifact path for key if one is known and the file still
// exists. A recorded path whose file vanished is dropped from the index.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	path, ok := c.local[key]
	c.mu.RUnlock()

	if !ok && c.redisAvailable() {
		val, err := c.client.Get(ctx, keyPrefix+key).Result()
		if err == nil && val != "" {
			path, ok = val, true
		} else if err != nil && err != redis.Nil {
			c.handleError(err, "get")
		}
	}

	if !ok {
		return "", false
	}

	if _, err := os.Stat(path); err != nil {
		c.logger.Debug().Str("key", key).Str("path", path).Msg("cached artifact missing, evicting")
		c.evict(ctx, key)
		return "", false
	}

	return path, true
}

// Put records the artifact path for key. Entries are never overwritten; the
// first finished render for a key wins.
func (c *Cache) Put(ctx context.Context, key, path string) {
	c.mu.Lock()
	if _, exists := c.local[key]; exists {
		c.mu.Unlock()
		return
	}
	c.local[key] = path
	c.mu.Unlock()

	if c.redisAvailable() {
		if err := c.client.SetNX(ctx, keyPrefix+key, path, c.config.TTL).Err(); err != nil {
			c.handleError(err, "put")
		}
	}
}

func (c *Cache) evict(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()

	if c.redisAvailable() {
		if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
			c.handleError(err, "evict")
		}
	}
}

func (c *Cache) redisAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling Redis index due to error, continuing process-local")
	}
}
