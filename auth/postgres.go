// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/VA7DBI/transcribeQueue/config"
	_ "github.com/lib/pq"
)

const defaultTokenTable = "api_tokens"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// PostgresTokenStore implements TokenStore for PostgreSQL
type PostgresTokenStore struct {
	db    *sql.DB
	query string
}

func NewPostgresTokenStore(cfg *config.Config) (*PostgresTokenStore, error) {
	pc := cfg.Auth.Postgres
	query, err := tokenQuery(pc.Query, pc.Table)
	if err != nil {
		return nil, err
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		pc.Host,
		pc.Port,
		pc.User,
		pc.Password,
		pc.DBName,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres connection failed: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %v", err)
	}

	return &PostgresTokenStore{db: db, query: query}, nil
}

// tokenQuery returns the configured query, or builds the default lookup
// against table.
func tokenQuery(query, table string) (string, error) {
	if query != "" {
		return query, nil
	}
	if table == "" {
		table = defaultTokenTable
	}
	if !tableName.MatchString(table) {
		return "", fmt.Errorf("invalid token table name %q", table)
	}
	return fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE token = $1 AND (valid_until IS NULL OR valid_until > NOW()))", table), nil
}

func (s *PostgresTokenStore) ValidateToken(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.query, token).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CacheToken is a no-op; Postgres is the source of truth.
func (s *PostgresTokenStore) CacheToken(context.Context, string) error {
	return nil
}

func (s *PostgresTokenStore) Close() error {
	return s.db.Close()
}
