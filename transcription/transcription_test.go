// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package transcription

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeLabel(t *testing.T) {
	assert.Equal(t, "[00:00]", TimeLabel(0))
	assert.Equal(t, "[01:00]", TimeLabel(60))
	assert.Equal(t, "[02:05]", TimeLabel(125.9))
	assert.Equal(t, "[125:00]", TimeLabel(7500))
}

func TestAssembleKeepsIndexOrder(t *testing.T) {
	pieces := []Piece{
		{SegmentIndex: 2, Text: "third"},
		{SegmentIndex: 0, Text: "first"},
		{SegmentIndex: 1, Text: "second"},
	}
	assert.Equal(t, "first\nsecond\nthird", Assemble(pieces))
	// input is left untouched
	assert.Equal(t, 2, pieces[0].SegmentIndex)
}

func TestContentLengthSkipsPlaceholders(t *testing.T) {
	pieces := []Piece{
		{SegmentIndex: 0, Text: "  hello "},
		Placeholder(1, "[01:00]", KindRateLimited),
	}
	assert.Equal(t, 5, ContentLength(pieces))
	assert.Contains(t, pieces[1].Text, "[01:00] [transcription failed: rate_limited]")
}

func TestKindOf(t *testing.T) {
	cases := map[ErrorKind]error{
		KindDecode:              fmt.Errorf("%w: bad header", ErrDecode),
		KindEmptyMedia:          ErrEmptyMedia,
		KindInsufficientContent: ErrInsufficientContent,
		KindRateLimited:         fmt.Errorf("gemini: %w", ErrRateLimited),
		KindNetwork:             context.DeadlineExceeded,
		KindService:             fmt.Errorf("%w: malformed json", ErrService),
		KindCancelled:           context.Canceled,
		KindInternal:            errors.New("boom"),
	}
	for want, err := range cases {
		t.Run(string(want), func(t *testing.T) {
			assert.Equal(t, want, KindOf(err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrRateLimited))
	assert.True(t, IsTransient(fmt.Errorf("dial: %w", ErrNetwork)))
	assert.False(t, IsTransient(ErrService))
	assert.False(t, IsTransient(ErrDecode))
}

func TestClassifyAddsConversionHint(t *testing.T) {
	info := Classify(fmt.Errorf("%w: unknown container", ErrDecode))
	assert.Equal(t, KindDecode, info.Kind)
	assert.Contains(t, info.Message, "MP3")
	assert.Nil(t, Classify(nil))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusIdle, StatusOptimizing))
	assert.True(t, CanTransition(StatusOptimizing, StatusUploading))
	assert.True(t, CanTransition(StatusOptimizing, StatusProcessing))
	assert.True(t, CanTransition(StatusUploading, StatusProcessing))
	assert.True(t, CanTransition(StatusProcessing, StatusSuccess))
	assert.True(t, CanTransition(StatusUploading, StatusError))
	assert.True(t, CanTransition(StatusProcessing, StatusProcessing))

	assert.False(t, CanTransition(StatusIdle, StatusSuccess))
	assert.False(t, CanTransition(StatusProcessing, StatusUploading))
	assert.False(t, CanTransition(StatusSuccess, StatusError))
	assert.False(t, CanTransition(StatusError, StatusError))
}

func TestNewResultDedupesSpeakers(t *testing.T) {
	res := NewResult("text", Analysis{
		Summary:  "s",
		Speakers: []string{"P2", "P1", "P2"},
	}, nil)
	assert.Equal(t, []string{"P2", "P1"}, res.Speakers)
	assert.NotNil(t, res.KeyPoints)
	assert.Nil(t, res.SourceReferences)
}
