// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/VA7DBI/transcribeQueue/config"
	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "token:"

// RedisTokenStore implements TokenStore for Redis
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenStore(cfg *config.Config) (*RedisTokenStore, error) {
	rc := cfg.Auth.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", rc.Host, rc.Port),
		Password: rc.Password,
		DB:       rc.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %v", err)
	}

	return &RedisTokenStore{
		client: client,
		ttl:    time.Duration(rc.KeyTTL) * time.Second,
	}, nil
}

func (s *RedisTokenStore) ValidateToken(ctx context.Context, token string) (bool, error) {
	exists, err := s.client.Exists(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

func (s *RedisTokenStore) CacheToken(ctx context.Context, token string) error {
	return s.client.Set(ctx, tokenKeyPrefix+token, "1", s.ttl).Err()
}

func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
