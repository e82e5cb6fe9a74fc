// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

//go:build whisper

package whisper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/VA7DBI/transcribeQueue/audio"
	"github.com/VA7DBI/transcribeQueue/transcription"
	whispercpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// LocalBackend runs a whisper.cpp model in-process. Calls are serialised on the model.
type LocalBackend struct {
	mu       sync.Mutex
	model    whispercpp.Model
	language string
}

var _ transcription.Transcriber = (*LocalBackend)(nil)

// NewLocalBackend loads the model at modelPath.
func NewLocalBackend(modelPath, language string) (*LocalBackend, error) {
	model, err := whispercpp.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %v", err)
	}
	return &LocalBackend{model: model, language: language}, nil
}

// Close releases the model.
func (b *LocalBackend) Close() error {
	return b.model.Close()
}

// Transcribe decodes the segment to 16 kHz mono and runs the model over it.
func (b *LocalBackend) Transcribe(ctx context.Context, data []byte, mimeType, startLabel string) (string, error) {
	samples, _, err := audio.Normalize(data, "segment"+extensionFor(mimeType), mimeType, audio.TargetSampleRate, audio.DownmixAverage)
	if err != nil {
		return "", fmt.Errorf("%w: %v", transcription.ErrService, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	wctx, err := b.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("%w: failed to create whisper context: %v", transcription.ErrService, err)
	}
	if b.language != "" {
		if err := wctx.SetLanguage(b.language); err != nil {
			return "", fmt.Errorf("%w: %v", transcription.ErrService, err)
		}
	}

	var sb strings.Builder
	segmentCallback := func(seg whispercpp.Segment) {
		sb.WriteString(seg.Text)
	}
	if err := wctx.Process(samples, segmentCallback, nil); err != nil {
		return "", fmt.Errorf("%w: failed to process audio: %v", transcription.ErrService, err)
	}
	return withLabel(startLabel, sb.String()), nil
}
