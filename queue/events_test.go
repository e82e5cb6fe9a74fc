// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendN(l *EventLog, n int) {
	for i := 0; i < n; i++ {
		l.Append(Event{Type: EventTypeStatus, Message: fmt.Sprint(l.LastSeq() + 1)})
	}
}

func TestEventLogSince(t *testing.T) {
	l := NewEventLog(3)
	assert.Empty(t, l.Since(0))
	assert.NotNil(t, l.Since(0))

	appendN(l, 3)

	events := l.Since(1)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, int64(3), events[1].Seq)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, int64(3), l.LastSeq())
	assert.Empty(t, l.Since(3))
	assert.Empty(t, l.Since(10))
}

func TestEventLogOverwritesOldest(t *testing.T) {
	l := NewEventLog(2)
	appendN(l, 3)

	events := l.Since(0)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].Message)
	assert.Equal(t, "3", events[1].Message)
}

func TestEventLogWrapsAround(t *testing.T) {
	l := NewEventLog(4)
	for total := 1; total <= 11; total++ {
		appendN(l, 1)
		for since := int64(0); since <= int64(total); since++ {
			events, last, missed := l.Read(since)
			require.Equal(t, int64(total), last)

			first := max(int64(total)-3, 1)
			assert.Equal(t, since < first-1, missed, "total=%d since=%d", total, since)
			want := max(since+1, first)
			for _, ev := range events {
				assert.Equal(t, want, ev.Seq, "total=%d since=%d", total, since)
				assert.Equal(t, fmt.Sprint(want), ev.Message)
				want++
			}
			assert.Equal(t, int64(total)+1, want)
		}
	}
}

func TestEventLogKeepsTimestamp(t *testing.T) {
	l := NewEventLog(1)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := l.Append(Event{Timestamp: at})
	assert.Equal(t, at, ev.Timestamp)
	assert.Equal(t, int64(1), ev.Seq)
}

func TestEventLogWait(t *testing.T) {
	l := NewEventLog(8)
	appendN(l, 1)

	// already satisfied
	require.NoError(t, l.Wait(context.Background(), 0))

	done := make(chan error, 1)
	go func() { done <- l.Wait(context.Background(), 1) }()

	select {
	case <-done:
		t.Fatal("Wait returned before a new event")
	case <-time.After(20 * time.Millisecond):
	}
	appendN(l, 1)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not wake on Append")
	}
}

func TestEventLogWaitTimeout(t *testing.T) {
	l := NewEventLog(8)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx, 0), context.DeadlineExceeded)
}
