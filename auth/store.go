// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package auth holds the bearer-token stores that guard the job API.
package auth

import "context"

// TokenStore defines the basic token operations
type TokenStore interface {
	ValidateToken(ctx context.Context, token string) (bool, error)
	CacheToken(ctx context.Context, token string) error
}
