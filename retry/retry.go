// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package retry runs fallible remote calls with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Class tells the policy how to treat a failed attempt.
type Class int

const (
	// Permanent failures are returned immediately.
	Permanent Class = iota
	// Transient failures (network, timeouts) are retried with the base backoff.
	Transient
	// Throttled failures (rate limits, quota) are retried with a longer backoff.
	Throttled
)

// Policy is a reusable retry strategy. The zero value is not usable; build one with New
// or fill every field.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	// ThrottleFactor scales the delay after a Throttled failure.
	ThrottleFactor float64
	MaxDelay       time.Duration
	Jitter         time.Duration
	Classify       func(error) Class

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a policy with the package's sleep implementation.
func New(maxAttempts int, base time.Duration, multiplier, throttleFactor float64, maxDelay, jitter time.Duration, classify func(error) Class) Policy {
	return Policy{
		MaxAttempts:    maxAttempts,
		BaseDelay:      base,
		Multiplier:     multiplier,
		ThrottleFactor: throttleFactor,
		MaxDelay:       maxDelay,
		Jitter:         jitter,
		Classify:       classify,
		Sleep:          SleepContext,
	}
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Outcome reports what Do did.
type Outcome struct {
	Attempts int
	Delays   []time.Duration
}

// Do calls fn until it succeeds, fails permanently, or MaxAttempts is reached.
// The attempt number passed to fn starts at 1. Delays between attempts never decrease.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (Outcome, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var out Outcome
	var prev time.Duration
	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		err := fn(ctx, attempt)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		class := p.classify(err)
		if class == Permanent {
			return out, err
		}
		if attempt >= maxAttempts {
			return out, &ExhaustedError{Attempts: attempt, Last: err}
		}

		delay := p.delay(attempt-1, class)
		if delay < prev {
			delay = prev
		}
		prev = delay
		out.Delays = append(out.Delays, delay)

		if err := sleep(ctx, delay); err != nil {
			return out, err
		}
	}
}

func (p Policy) classify(err error) Class {
	if p.Classify == nil {
		return Transient
	}
	return p.Classify(err)
}

// delay computes base * multiplier^n, scaled for throttling, plus jitter, capped at MaxDelay.
func (p Policy) delay(n int, class Class) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(n))
	if class == Throttled && p.ThrottleFactor > 1 {
		d *= p.ThrottleFactor
	}
	if p.Jitter > 0 {
		d += float64(rand.Int64N(int64(p.Jitter) + 1))
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// SleepContext blocks for d unless ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
