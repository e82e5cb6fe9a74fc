// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

//go:build !whisper

package whisper

import (
	"context"
	"errors"
)

// ErrLocalUnavailable is returned when the binary was built without the whisper tag.
var ErrLocalUnavailable = errors.New("local whisper backend requires building with -tags whisper")

// LocalBackend is unavailable in this build.
type LocalBackend struct{}

// NewLocalBackend always fails in builds without the whisper tag.
func NewLocalBackend(modelPath, language string) (*LocalBackend, error) {
	return nil, ErrLocalUnavailable
}

func (b *LocalBackend) Close() error { return nil }

func (b *LocalBackend) Transcribe(ctx context.Context, data []byte, mimeType, startLabel string) (string, error) {
	return "", ErrLocalUnavailable
}
