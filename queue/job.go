// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package queue owns the job set and admits jobs under a concurrency ceiling.
package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/VA7DBI/transcribeQueue/transcription"
)

var (
	// ErrClosed is returned by every Scheduler method after Close.
	ErrClosed = errors.New("scheduler is closed")
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidSource is returned when a submitted source carries neither data nor a URL.
	ErrInvalidSource = errors.New("invalid source")
)

// Job is a snapshot of one submitted source. Result is set iff Status is success;
// Error is set iff Status is error.
type Job struct {
	ID        string                   `json:"id"`
	Source    transcription.Source     `json:"source"`
	Status    transcription.Status     `json:"status"`
	Progress  string                   `json:"progress_message"`
	Result    *transcription.Result    `json:"transcript,omitempty"`
	Error     *transcription.ErrorInfo `json:"error,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Stats aggregates the job set.
type Stats struct {
	Total       int `json:"total"`
	Idle        int `json:"idle"`
	Active      int `json:"active"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Ceiling     int `json:"ceiling"`
	PercentDone int `json:"percent_done"`
}

func validateSource(src transcription.Source) error {
	switch src.Kind {
	case transcription.SourceFile:
		// Zero-byte files are accepted and fail in the runner as empty media.
		if src.File == nil {
			return fmt.Errorf("%w: file source without data", ErrInvalidSource)
		}
	case transcription.SourceURL:
		if src.URL == "" {
			return fmt.Errorf("%w: empty URL", ErrInvalidSource)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, src.Kind)
	}
	return nil
}
