// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package middleware

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/VA7DBI/transcribeQueue/auth"
	"github.com/VA7DBI/transcribeQueue/config"
	"github.com/gin-gonic/gin"
)

type storeConstructor func(*config.Config) (auth.TokenStore, error)

// AuthMiddleware handles bearer token authentication
type AuthMiddleware struct {
	cfg         *config.Config
	logger      *log.Logger
	redisStore  auth.TokenStore
	pgStore     auth.TokenStore
	staticStore auth.TokenStore

	redisConstructor    storeConstructor
	postgresConstructor storeConstructor
}

// NewAuthMiddleware creates a new auth middleware instance
func NewAuthMiddleware(cfg *config.Config, logger *log.Logger) (*AuthMiddleware, error) {
	redisConstructor := func(cfg *config.Config) (auth.TokenStore, error) {
		return auth.NewRedisTokenStore(cfg)
	}

	postgresConstructor := func(cfg *config.Config) (auth.TokenStore, error) {
		return auth.NewPostgresTokenStore(cfg)
	}

	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &AuthMiddleware{
		cfg:                 cfg,
		logger:              logger,
		redisConstructor:    redisConstructor,
		postgresConstructor: postgresConstructor,
	}
	return m, m.initialize()
}

func (m *AuthMiddleware) initialize() error {
	if !m.cfg.Auth.Enabled {
		m.redisStore = nil
		m.pgStore = nil
		m.staticStore = nil
		return nil
	}

	m.staticStore = auth.NewStaticTokenStore(m.cfg.Auth.Tokens...)

	if m.cfg.Auth.Redis.Enabled {
		store, err := m.redisConstructor(m.cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis store: %v", err)
		}
		m.redisStore = store
	}

	if m.cfg.Auth.Postgres.Enabled {
		store, err := m.postgresConstructor(m.cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize Postgres store: %v", err)
		}
		m.pgStore = store
	}

	return nil
}

// BearerAuthMiddleware creates a new auth middleware handler
func BearerAuthMiddleware(cfg *config.Config, logger *log.Logger) gin.HandlerFunc {
	middleware, err := NewAuthMiddleware(cfg, logger)
	if err != nil {
		if logger != nil {
			logger.Printf("auth setup failed err=%v", err)
		}
		return func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Auth middleware setup failed"})
			c.Abort()
		}
	}
	return middleware.Handler()
}

// Handler returns the gin middleware handler function
func (m *AuthMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.cfg.Auth.Enabled {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		ctx := c.Request.Context()

		// Redis first, it is the cache in front of the others.
		if m.valid(c, m.redisStore, "redis", token) {
			c.Next()
			return
		}

		for _, s := range []struct {
			name  string
			store auth.TokenStore
		}{{"postgres", m.pgStore}, {"static", m.staticStore}} {
			if !m.valid(c, s.store, s.name, token) {
				continue
			}
			if m.redisStore != nil {
				if err := m.redisStore.CacheToken(ctx, token); err != nil {
					m.logger.Printf("token cache failed err=%v", err)
				}
			}
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		c.Abort()
	}
}

func (m *AuthMiddleware) valid(c *gin.Context, store auth.TokenStore, name, token string) bool {
	if store == nil {
		return false
	}
	ok, err := store.ValidateToken(c.Request.Context(), token)
	if err != nil {
		m.logger.Printf("token lookup failed store=%s err=%v", name, err)
		return false
	}
	return ok
}

// Close releases the connections held by the token stores.
func (m *AuthMiddleware) Close() error {
	var firstErr error
	for _, s := range []auth.TokenStore{m.redisStore, m.pgStore} {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return parts[1]
}
