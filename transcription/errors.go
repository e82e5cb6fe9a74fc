// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package transcription

import (
	"context"
	"errors"
)

var (
	// ErrDecode means the media could not be turned into PCM. Not retried.
	ErrDecode = errors.New("media could not be decoded")
	// ErrEmptyMedia means the decoded media has zero duration.
	ErrEmptyMedia = errors.New("media is empty")
	// ErrInsufficientContent means the transcript came back empty or too short.
	ErrInsufficientContent = errors.New("transcript is empty")
	// ErrRateLimited means the remote service asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
	// ErrNetwork covers transport failures and call timeouts.
	ErrNetwork = errors.New("network error")
	// ErrService means the remote service rejected the call or answered with something unparseable.
	ErrService = errors.New("service error")
)

// ErrorKind is the user-facing classification of a job failure.
type ErrorKind string

const (
	KindDecode              ErrorKind = "decode"
	KindEmptyMedia          ErrorKind = "empty_media"
	KindInsufficientContent ErrorKind = "insufficient_content"
	KindRateLimited         ErrorKind = "rate_limited"
	KindNetwork             ErrorKind = "network"
	KindService             ErrorKind = "service"
	KindCancelled           ErrorKind = "cancelled"
	KindInternal            ErrorKind = "internal"
)

// ErrorInfo is attached to a job that ended in StatusError.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// KindOf maps an error onto the taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrEmptyMedia):
		return KindEmptyMedia
	case errors.Is(err, ErrInsufficientContent):
		return KindInsufficientContent
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	case errors.Is(err, ErrService):
		return KindService
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindInternal
	}
}

// IsTransient reports whether a failed remote call is worth retrying.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindNetwork:
		return true
	default:
		return false
	}
}

// Classify builds the ErrorInfo shown to the user.
func Classify(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	msg := err.Error()
	if kind == KindDecode {
		msg += "; try converting the file to MP3 or WAV"
	}
	return &ErrorInfo{Kind: kind, Message: msg}
}
