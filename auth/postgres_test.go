// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package auth

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgresTest(t *testing.T) (*PostgresTokenStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}

	query, err := tokenQuery("", "api_tokens")
	require.NoError(t, err)

	store := &PostgresTokenStore{db: db, query: query}
	t.Cleanup(func() { db.Close() })

	return store, mock
}

func TestPostgresTokenStore(t *testing.T) {
	store, mock := setupPostgresTest(t)
	ctx := context.Background()

	t.Run("ValidateValidToken", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("valid-token").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		valid, err := store.ValidateToken(ctx, "valid-token")
		assert.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("ValidateInvalidToken", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("invalid-token").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		valid, err := store.ValidateToken(ctx, "invalid-token")
		assert.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("NoRows", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("missing-token").
			WillReturnError(sql.ErrNoRows)

		valid, err := store.ValidateToken(ctx, "missing-token")
		assert.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("error-token").
			WillReturnError(sqlmock.ErrCancelled)

		valid, err := store.ValidateToken(ctx, "error-token")
		assert.Error(t, err)
		assert.False(t, valid)
	})

	assert.NoError(t, store.CacheToken(ctx, "anything"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenQuery(t *testing.T) {
	q, err := tokenQuery("SELECT true WHERE $1 = 'x'", "ignored")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT true WHERE $1 = 'x'", q)

	q, err = tokenQuery("", "")
	assert.NoError(t, err)
	assert.Contains(t, q, "FROM api_tokens WHERE token = $1")

	q, err = tokenQuery("", "auth.keys")
	assert.NoError(t, err)
	assert.Contains(t, q, "FROM auth.keys")

	_, err = tokenQuery("", "tokens; DROP TABLE users")
	assert.Error(t, err)
}
