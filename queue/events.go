// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package queue

import (
	"context"
	"sync"
	"time"

	"github.com/VA7DBI/transcribeQueue/transcription"
)

// EventType classifies job events.
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeProgress EventType = "progress"
	EventTypeResult   EventType = "result"
	EventTypeError    EventType = "error"
	EventTypeRemoved  EventType = "removed"
)

// DefaultEventHistory is the ring size used when none is given.
const DefaultEventHistory = 1000

// Event is one sequenced change to a job.
type Event struct {
	Seq       int64                    `json:"seq"`
	Timestamp time.Time                `json:"timestamp"`
	JobID     string                   `json:"job_id"`
	Type      EventType                `json:"type"`
	Status    transcription.Status     `json:"status,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Result    *transcription.Result    `json:"transcript,omitempty"`
	Error     *transcription.ErrorInfo `json:"error,omitempty"`
}

// EventLog is a ring of the most recent job events. Sequence numbers start at 1
// and have no gaps, so the ring position of any retained event is computed
// from its number.
type EventLog struct {
	mu      sync.RWMutex
	ring    []Event
	head    int // slot of the oldest retained event
	size    int
	last    int64
	changed chan struct{}
	now     func() time.Time
}

// NewEventLog returns a log retaining the newest capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventHistory
	}
	return &EventLog{
		ring:    make([]Event, capacity),
		changed: make(chan struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Append numbers and stamps ev, overwriting the oldest event when the ring is
// full, and wakes every Wait caller.
func (l *EventLog) Append(ev Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.last++
	ev.Seq = l.last
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now()
	}

	if l.size < len(l.ring) {
		l.ring[(l.head+l.size)%len(l.ring)] = ev
		l.size++
	} else {
		l.ring[l.head] = ev
		l.head = (l.head + 1) % len(l.ring)
	}

	close(l.changed)
	l.changed = make(chan struct{})
	return ev
}

// Since returns the retained events numbered above seq, oldest first. The
// result is never nil.
func (l *EventLog) Since(seq int64) []Event {
	events, _, _ := l.Read(seq)
	return events
}

// Read is Since plus, from the same snapshot, the newest sequence number and
// whether events after seq have already been overwritten.
func (l *EventLog) Read(seq int64) (events []Event, last int64, missed bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	first := l.last - int64(l.size) + 1
	if seq < first-1 {
		seq, missed = first-1, true
	}
	n := int(l.last - seq)
	if n <= 0 {
		return []Event{}, l.last, missed
	}

	events = make([]Event, n)
	offset := l.size - n
	for i := range events {
		events[i] = l.ring[(l.head+offset+i)%len(l.ring)]
	}
	return events, l.last, missed
}

// LastSeq is the number of the newest event, 0 if none.
func (l *EventLog) LastSeq() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}

// Wait blocks until an event numbered above seq exists or ctx is done.
func (l *EventLog) Wait(ctx context.Context, seq int64) error {
	for {
		l.mu.RLock()
		last, changed := l.last, l.changed
		l.mu.RUnlock()
		if last > seq {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
