// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package cache stores finished transcripts so identical uploads skip the pipeline.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/VA7DBI/transcribeQueue/config"
	"github.com/VA7DBI/transcribeQueue/transcription"
	"github.com/redis/go-redis/v9"
)

// RedisResultCache implements pipeline.ResultCache on Redis.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisResultCache(cfg *config.Config) (*RedisResultCache, error) {
	rc := cfg.Cache.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", rc.Host, rc.Port),
		Password: rc.Password,
		DB:       rc.DB,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %v", err)
	}

	return &RedisResultCache{
		client: client,
		ttl:    time.Duration(rc.KeyTTL) * time.Second,
		prefix: cfg.Cache.KeyPrefix,
	}, nil
}

// Get returns the cached result for key, if any.
func (c *RedisResultCache) Get(ctx context.Context, key string) (*transcription.Result, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result transcription.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %s: %v", key, err)
	}
	return &result, true, nil
}

// Set stores result under key with the configured TTL.
func (c *RedisResultCache) Set(ctx context.Context, key string, result *transcription.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

// Close releases the connection pool.
func (c *RedisResultCache) Close() error {
	return c.client.Close()
}
