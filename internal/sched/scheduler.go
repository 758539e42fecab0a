package sched

import (
	"log"
	"sync"
	"time"
)

// JobKind identifies which of a booking's two deadline jobs is firing.
type JobKind string

const (
	KindReminder    JobKind = "reminder"
	KindEnforcement JobKind = "enforcement"
)

// Clock abstracts time so tests can drive the scheduler with a manually
// advanced clock instead of wall-clock sleeps.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the cancellable handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// NewRealClock returns a Clock backed by the runtime timers.
func NewRealClock() Clock { return realClock{} }

// OnFireFunc is the callback invoked when a deadline job comes due. It runs
// on the timer goroutine, never on the request path that created the booking.
type OnFireFunc func(bookingID int64, kind JobKind)

// Scheduler tracks the deposit-deadline jobs of live bookings. It is an
// injected instance owned by the composition root, not a process singleton,
// with an explicit Stop for shutdown.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	onFire  OnFireFunc
	jobs    map[int64]*bookingJobs
	stopped bool
}

type bookingJobs struct {
	timers    map[JobKind]Timer
	remaining int
}

// New creates a scheduler firing into onFire.
func New(clock Clock, onFire OnFireFunc) *Scheduler {
	return &Scheduler{
		clock:  clock,
		onFire: onFire,
		jobs:   make(map[int64]*bookingJobs),
	}
}

// Schedule registers the booking's reminder and enforcement jobs at the given
// offsets from now. Scheduling again for the same booking replaces any jobs
// still pending.
func (s *Scheduler) Schedule(bookingID int64, reminderAfter, enforceAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if existing, ok := s.jobs[bookingID]; ok {
		for _, t := range existing.timers {
			t.Stop()
		}
		delete(s.jobs, bookingID)
	}

	j := &bookingJobs{timers: make(map[JobKind]Timer, 2)}
	for kind, after := range map[JobKind]time.Duration{
		KindReminder:    reminderAfter,
		KindEnforcement: enforceAfter,
	} {
		kind := kind
		j.timers[kind] = s.clock.AfterFunc(after, func() {
			s.fire(bookingID, kind)
		})
		j.remaining++
	}
	s.jobs[bookingID] = j
}

// CancelAll cancels both of the booking's jobs. It is idempotent: cancelling
// twice, or cancelling jobs that already fired, is a no-op. A job whose timer
// has gone off but has not executed yet observes the cancellation under the
// scheduler mutex and skips its action.
func (s *Scheduler) CancelAll(bookingID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[bookingID]
	if !ok {
		return
	}
	for _, t := range j.timers {
		t.Stop()
	}
	delete(s.jobs, bookingID)
}

// Stop cancels every pending job. Used at shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, j := range s.jobs {
		for _, t := range j.timers {
			t.Stop()
		}
		delete(s.jobs, id)
	}
}

// PendingFor reports how many of the booking's jobs have neither fired nor
// been cancelled.
func (s *Scheduler) PendingFor(bookingID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[bookingID]
	if !ok {
		return 0
	}
	return j.remaining
}

// fire runs when a timer goes off. The cancelled check and the cancellation
// write in CancelAll are serialized by s.mu, so a job racing its own
// cancellation either sees the jobs entry gone and skips, or commits to
// running before CancelAll can acquire the lock.
func (s *Scheduler) fire(bookingID int64, kind JobKind) {
	s.mu.Lock()
	j, ok := s.jobs[bookingID]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(j.timers, kind)
	j.remaining--
	if j.remaining <= 0 {
		delete(s.jobs, bookingID)
	}
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("scheduler: %s callback for booking %d panicked: %v", kind, bookingID, r)
		}
	}()
	s.onFire(bookingID, kind)
}
