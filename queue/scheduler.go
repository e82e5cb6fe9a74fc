// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package queue

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/VA7DBI/transcribeQueue/metrics"
	"github.com/VA7DBI/transcribeQueue/transcription"
	"github.com/google/uuid"
)

// Runner executes one job. pipeline.Processor satisfies it.
type Runner interface {
	Run(ctx context.Context, src transcription.Source, progress transcription.ProgressFunc) (*transcription.Result, error)
}

// Scheduler owns the job set. Every mutation runs on a single loop goroutine; job
// routines report back to it through the request channel. A slot is taken from
// slots when a job is admitted and returned only when its routine has finished,
// so removed jobs keep their slot until they actually stop.
type Scheduler struct {
	runner  Runner
	ceiling int
	slots   chan struct{}
	events  *EventLog
	logger  *log.Logger
	now     func() time.Time

	// loop-owned
	jobs   map[string]*entry
	order  []string
	closed bool

	baseCtx  context.Context
	cancel   context.CancelFunc
	requests chan request
	stop     chan struct{}
	quit     chan struct{}
	once     sync.Once
	routines sync.WaitGroup
}

type entry struct {
	job     Job
	cancel  context.CancelFunc
	started time.Time
}

type request struct {
	fn   func()
	done chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithEventLog replaces the default event history.
func WithEventLog(l *EventLog) Option {
	return func(s *Scheduler) { s.events = l }
}

// NewScheduler starts the scheduler loop. ceiling values below 1 are raised to 1.
func NewScheduler(runner Runner, ceiling int, opts ...Option) *Scheduler {
	if ceiling < 1 {
		ceiling = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:   runner,
		ceiling:  ceiling,
		slots:    make(chan struct{}, ceiling),
		events:   NewEventLog(DefaultEventHistory),
		logger:   log.New(io.Discard, "", 0),
		now:      time.Now,
		jobs:     make(map[string]*entry),
		baseCtx:  ctx,
		cancel:   cancel,
		requests: make(chan request),
		stop:     make(chan struct{}),
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	defer close(s.quit)
	for {
		select {
		case req := <-s.requests:
			req.fn()
			s.admit()
			if req.done != nil {
				close(req.done)
			}
		case <-s.stop:
			return
		}
	}
}

// do runs fn on the loop and waits for it and the admission pass that follows.
func (s *Scheduler) do(fn func()) error {
	req := request{fn: fn, done: make(chan struct{})}
	select {
	case s.requests <- req:
	case <-s.quit:
		return ErrClosed
	}
	<-req.done
	return nil
}

// post hands fn to the loop without waiting for it to run.
func (s *Scheduler) post(fn func()) bool {
	select {
	case s.requests <- request{fn: fn}:
		return true
	case <-s.quit:
		return false
	}
}

// Ceiling returns the concurrency ceiling.
func (s *Scheduler) Ceiling() int {
	return s.ceiling
}

// Events exposes the job event history.
func (s *Scheduler) Events() *EventLog {
	return s.events
}

// Submit adds one job in the idle state and runs an admission pass.
func (s *Scheduler) Submit(src transcription.Source) (Job, error) {
	jobs, err := s.SubmitAll([]transcription.Source{src})
	if err != nil {
		return Job{}, err
	}
	return jobs[0], nil
}

// SubmitAll adds several jobs atomically, in order. Returned snapshots are taken
// before admission, so every job is reported idle.
func (s *Scheduler) SubmitAll(sources []transcription.Source) ([]Job, error) {
	for _, src := range sources {
		if err := validateSource(src); err != nil {
			return nil, err
		}
	}

	var (
		out    []Job
		result error
	)
	err := s.do(func() {
		if s.closed {
			result = ErrClosed
			return
		}
		now := s.now()
		for _, src := range sources {
			e := &entry{job: Job{
				ID:        uuid.NewString(),
				Source:    src,
				Status:    transcription.StatusIdle,
				Progress:  "waiting",
				CreatedAt: now,
				UpdatedAt: now,
			}}
			s.jobs[e.job.ID] = e
			s.order = append(s.order, e.job.ID)
			out = append(out, e.job)

			metrics.JobsSubmitted.WithLabelValues(string(src.Kind)).Inc()
			s.publish(e, EventTypeStatus)
			s.logger.Printf("job submitted id=%s kind=%s source=%s", e.job.ID, src.Kind, src.Label())
		}
	})
	if err != nil {
		return nil, err
	}
	return out, result
}

// Get returns a snapshot of one job.
func (s *Scheduler) Get(id string) (Job, error) {
	var (
		job Job
		ok  bool
	)
	err := s.do(func() {
		var e *entry
		if e, ok = s.jobs[id]; ok {
			job = e.job
		}
	})
	if err != nil {
		return Job{}, err
	}
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return job, nil
}

// List returns snapshots of every job in submission order.
func (s *Scheduler) List() ([]Job, error) {
	var out []Job
	err := s.do(func() {
		out = make([]Job, 0, len(s.order))
		for _, id := range s.order {
			out = append(out, s.jobs[id].job)
		}
	})
	return out, err
}

// Stats summarises the job set.
func (s *Scheduler) Stats() (Stats, error) {
	var st Stats
	err := s.do(func() {
		st.Ceiling = s.ceiling
		for _, e := range s.jobs {
			st.Total++
			switch status := e.job.Status; {
			case status == transcription.StatusIdle:
				st.Idle++
			case status.IsActive():
				st.Active++
			case status == transcription.StatusSuccess:
				st.Succeeded++
			case status == transcription.StatusError:
				st.Failed++
			}
		}
		if st.Total > 0 {
			st.PercentDone = 100 * (st.Succeeded + st.Failed) / st.Total
		}
	})
	return st, err
}

// Remove discards a job in any state. A running job is cancelled; its slot is
// reclaimed once its routine returns and its result is dropped.
func (s *Scheduler) Remove(id string) error {
	found := false
	err := s.do(func() {
		var e *entry
		if e, found = s.jobs[id]; found {
			s.remove(e)
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// ClearAll removes every job and returns how many were removed.
func (s *Scheduler) ClearAll() (int, error) {
	n := 0
	err := s.do(func() {
		for _, id := range append([]string(nil), s.order...) {
			s.remove(s.jobs[id])
			n++
		}
	})
	return n, err
}

// Close cancels running jobs, waits for their routines and stops the loop.
func (s *Scheduler) Close() error {
	err := ErrClosed
	s.once.Do(func() {
		err = s.do(func() {
			s.closed = true
			for _, e := range s.jobs {
				if e.cancel != nil {
					e.cancel()
				}
			}
		})
		s.cancel()
		close(s.stop)
		<-s.quit
		s.routines.Wait()
		s.logger.Printf("scheduler closed")
	})
	return err
}

func (s *Scheduler) remove(e *entry) {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	delete(s.jobs, e.job.ID)
	for i, id := range s.order {
		if id == e.job.ID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.events.Append(Event{JobID: e.job.ID, Type: EventTypeRemoved, Status: e.job.Status})
	s.logger.Printf("job removed id=%s status=%s", e.job.ID, e.job.Status)
}

// admit starts idle jobs in submission order while slots are free.
func (s *Scheduler) admit() {
	if s.closed {
		return
	}
	for _, id := range s.order {
		e := s.jobs[id]
		if e.job.Status != transcription.StatusIdle {
			continue
		}
		select {
		case s.slots <- struct{}{}:
		default:
			return
		}
		s.start(e)
	}
}

func (s *Scheduler) start(e *entry) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	e.cancel = cancel
	e.started = s.now()
	s.setStatus(e, transcription.StatusOptimizing, "starting")
	metrics.ActiveJobs.Inc()

	s.routines.Add(1)
	go s.execute(ctx, e.job.ID, e.job.Source)
}

// execute is the job routine. It always reports back exactly once so the slot is returned.
func (s *Scheduler) execute(ctx context.Context, id string, src transcription.Source) {
	defer s.routines.Done()

	var (
		res *transcription.Result
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("job panicked: %v", r)
		}
		s.post(func() { s.finish(id, res, err) })
	}()

	res, err = s.runner.Run(ctx, src, func(status transcription.Status, message string) {
		s.post(func() { s.progress(id, status, message) })
	})
}

func (s *Scheduler) progress(id string, status transcription.Status, message string) {
	e, ok := s.jobs[id]
	if !ok || e.job.Status.IsTerminal() {
		return
	}
	if status != e.job.Status && !status.IsTerminal() {
		if transcription.CanTransition(e.job.Status, status) {
			s.setStatus(e, status, message)
			return
		}
		s.logger.Printf("ignoring transition id=%s from=%s to=%s", id, e.job.Status, status)
	}
	e.job.Progress = message
	e.job.UpdatedAt = s.now()
	s.publish(e, EventTypeProgress)
}

func (s *Scheduler) finish(id string, res *transcription.Result, err error) {
	<-s.slots
	metrics.ActiveJobs.Dec()

	e, ok := s.jobs[id]
	if !ok {
		s.logger.Printf("discarding result of removed job id=%s err=%v", id, err)
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	elapsed := s.now().Sub(e.started)
	metrics.JobDuration.WithLabelValues(string(e.job.Source.Kind)).Observe(elapsed.Seconds())

	if err == nil && res == nil {
		err = fmt.Errorf("job finished without a result")
	}
	if err != nil {
		info := transcription.Classify(err)
		e.job.Error = info
		s.setStatus(e, transcription.StatusError, info.Message)
		metrics.JobOutcomes.WithLabelValues(string(transcription.StatusError), string(info.Kind)).Inc()
		s.logger.Printf("job failed id=%s kind=%s elapsed=%s err=%v", id, info.Kind, elapsed, err)
		return
	}

	if e.job.Status != transcription.StatusProcessing {
		s.setStatus(e, transcription.StatusProcessing, "finishing")
	}
	e.job.Result = res
	s.setStatus(e, transcription.StatusSuccess, "done")
	metrics.JobOutcomes.WithLabelValues(string(transcription.StatusSuccess), "").Inc()
	s.logger.Printf("job succeeded id=%s elapsed=%s chars=%d", id, elapsed, len(res.Text))
}

func (s *Scheduler) setStatus(e *entry, status transcription.Status, message string) {
	e.job.Status = status
	e.job.Progress = message
	e.job.UpdatedAt = s.now()

	typ := EventTypeStatus
	switch status {
	case transcription.StatusSuccess:
		typ = EventTypeResult
	case transcription.StatusError:
		typ = EventTypeError
	}
	s.publish(e, typ)
}

func (s *Scheduler) publish(e *entry, typ EventType) {
	s.events.Append(Event{
		JobID:   e.job.ID,
		Type:    typ,
		Status:  e.job.Status,
		Message: e.job.Progress,
		Result:  e.job.Result,
		Error:   e.job.Error,
	})
}
