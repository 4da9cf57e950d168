// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package scheduler implements tick-counted timeouts and intervals on top of
// the host's variable-rate tick callback. The host exposes no wall-clock
// timers, so millisecond durations are converted to tick counts using a
// rolling measurement of the effective tick rate.
package scheduler

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/wardenmc/warden/pkg/errutil"
)

// NominalRate is the tick rate assumed before enough samples accumulate.
const NominalRate = 20.0

// rateWindow is the number of tick timestamps kept for rate measurement.
const rateWindow = 40

// TaskID identifies a scheduled task.
type TaskID = ulid.ULID

type task struct {
	id       TaskID
	fn       func()
	dueTick  uint64
	interval uint64 // 0 for one-shot
}

// Scheduler registers timeout and interval tasks and fires them from the
// host tick callback. It is safe for concurrent use, though the host is
// expected to drive Tick from a single thread.
type Scheduler struct {
	mu     sync.Mutex
	tick   uint64
	tasks  map[TaskID]*task
	logger *slog.Logger

	samples [rateWindow]time.Time
	sampled int // total samples recorded, saturates at rateWindow
	cursor  int

	clock func() time.Time
}

// New creates a Scheduler logging task failures to the given logger.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		tasks:  make(map[TaskID]*task),
		logger: logger,
		clock:  time.Now,
	}
}

// CurrentTick returns the number of ticks processed so far.
func (s *Scheduler) CurrentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Rate returns the measured ticks per second. Until the sample window has
// filled, the nominal rate is assumed.
func (s *Scheduler) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLocked()
}

func (s *Scheduler) rateLocked() float64 {
	if s.sampled < rateWindow {
		return NominalRate
	}
	// cursor points at the oldest sample once the window is full.
	oldest := s.samples[s.cursor]
	newest := s.samples[(s.cursor+rateWindow-1)%rateWindow]
	elapsed := newest.Sub(oldest).Seconds()
	if elapsed <= 0 {
		return NominalRate
	}
	return float64(rateWindow) / elapsed
}

// ticksFor converts a duration into a tick delta at the measured rate.
// Every task is at least one tick away so it can never fire synchronously.
func (s *Scheduler) ticksFor(d time.Duration) uint64 {
	ticks := uint64(math.Round(d.Seconds() * s.rateLocked()))
	if ticks == 0 {
		ticks = 1
	}
	return ticks
}

// SetTimeout registers fn to run once after delay and returns its id.
func (s *Scheduler) SetTimeout(fn func(), delay time.Duration) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &task{id: ulid.Make(), fn: fn, dueTick: s.tick + s.ticksFor(delay)}
	s.tasks[t.id] = t
	return t.id
}

// SetInterval registers fn to run repeatedly every interval and returns its
// id. The tick delta is fixed at registration time; a later change in the
// measured rate does not reschedule existing intervals.
func (s *Scheduler) SetInterval(fn func(), interval time.Duration) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := s.ticksFor(interval)
	t := &task{id: ulid.Make(), fn: fn, dueTick: s.tick + delta, interval: delta}
	s.tasks[t.id] = t
	return t.id
}

// Cancel removes a task. Cancelling an unknown or already-fired id is a
// no-op.
func (s *Scheduler) Cancel(id TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// Pending returns the number of registered tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Tick advances the scheduler by one host tick: it records a rate sample,
// increments the counter, and fires every due task. One-shot tasks are
// removed before their callback runs; repeating tasks are pushed forward by
// their tick delta. A failing callback never prevents the others from
// firing.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	s.samples[s.cursor] = s.clock()
	s.cursor = (s.cursor + 1) % rateWindow
	if s.sampled < rateWindow {
		s.sampled++
	}
	s.tick++
	TickRate.Observe(s.rateLocked())

	var due []*task
	for _, t := range s.tasks {
		if t.dueTick <= s.tick {
			due = append(due, t)
		}
	}
	for _, t := range due {
		if t.interval == 0 {
			delete(s.tasks, t.id)
		} else {
			t.dueTick += t.interval
		}
	}
	s.mu.Unlock()

	// Callbacks run outside the lock so they may register or cancel
	// tasks themselves.
	for _, t := range due {
		s.runTask(t)
	}
}

func (s *Scheduler) runTask(t *task) {
	defer func() {
		if r := recover(); r != nil {
			err := oops.Code("SCHED_TASK_PANIC").
				With("task_id", t.id.String()).
				Errorf("scheduled task panicked: %v", r)
			errutil.LogError(s.logger, "scheduled task failed", err)
		}
	}()
	t.fn()
}
