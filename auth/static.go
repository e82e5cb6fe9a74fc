// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package auth

import (
	"context"
	"sync"
)

// StaticTokenStore keeps tokens in memory. It is seeded from the
// configured fallback tokens.
type StaticTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

func NewStaticTokenStore(tokens ...string) *StaticTokenStore {
	s := &StaticTokenStore{tokens: make(map[string]struct{}, len(tokens))}
	for _, t := range tokens {
		if t != "" {
			s.tokens[t] = struct{}{}
		}
	}
	return s
}

func (s *StaticTokenStore) ValidateToken(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[token]
	return ok, nil
}

func (s *StaticTokenStore) CacheToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = struct{}{}
	return nil
}
