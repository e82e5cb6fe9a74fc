// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package transcription

// Status is a job lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusOptimizing Status = "optimizing"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// ProgressFunc receives stage changes and human-readable progress from a running job.
// It is a notification channel only.
type ProgressFunc func(status Status, message string)

// IsActive reports whether the status counts against the concurrency ceiling.
func (s Status) IsActive() bool {
	switch s {
	case StatusOptimizing, StatusUploading, StatusProcessing:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

// CanTransition enforces the job state machine edges. Staying in the same
// state is allowed for every non-terminal state.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.IsTerminal()
	}
	switch from {
	case StatusIdle:
		return to == StatusOptimizing || to == StatusError
	case StatusOptimizing:
		return to == StatusUploading || to == StatusProcessing || to == StatusError
	case StatusUploading:
		return to == StatusProcessing || to == StatusError
	case StatusProcessing:
		return to == StatusSuccess || to == StatusError
	default:
		return false
	}
}
