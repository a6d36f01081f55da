package digest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
)

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

// fakeClock drives the scheduler without real timers. Advance moves the
// clock and releases any waiter whose deadline passed; armed signals
// each After call so tests can synchronize with the scheduler loop.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
	armed   chan struct{}
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, armed: make(chan struct{}, 16)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
	} else {
		c.waiters = append(c.waiters, fakeWaiter{at: c.now.Add(d), ch: ch})
	}
	c.mu.Unlock()
	select {
	case c.armed <- struct{}{}:
	default:
	}
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()
}

func (c *fakeClock) waitArmed(t *testing.T) {
	t.Helper()
	select {
	case <-c.armed:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never armed a timer")
	}
}

type fakeRunner struct {
	fired chan string
	err   error
}

func (r *fakeRunner) RunCycle(_ context.Context, slot string) error {
	r.fired <- slot
	return r.err
}

func (r *fakeRunner) waitFired(t *testing.T) string {
	t.Helper()
	select {
	case slot := <-r.fired:
		return slot
	case <-time.After(2 * time.Second):
		t.Fatal("cycle never ran")
		return ""
	}
}

func startTestScheduler(t *testing.T, clock *fakeClock, runner CycleRunner, slots ...string) *Scheduler {
	t.Helper()
	s, err := NewScheduler(SchedulerConfig{
		Slots:    slots,
		Location: time.UTC,
		Runner:   runner,
		Clock:    clock,
		Logger:   logging.NewLogger(),
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("scheduler did not stop")
		}
	})
	return s
}

func TestSchedulerFiresSlotAndRearmsForTomorrow(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	runner := &fakeRunner{fired: make(chan string, 4)}
	s := startTestScheduler(t, clock, runner, "09:00")
	clock.waitArmed(t)

	next := s.NextFires()["09:00"]
	want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next fire = %v, want %v", next, want)
	}

	clock.Advance(time.Hour)
	if slot := runner.waitFired(t); slot != "09:00" {
		t.Fatalf("fired slot %q, want 09:00", slot)
	}

	clock.waitArmed(t)
	next = s.NextFires()["09:00"]
	want = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("re-armed fire = %v, want %v", next, want)
	}
}

func TestSchedulerSlotAlreadyPassedRollsToTomorrow(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC))
	runner := &fakeRunner{fired: make(chan string, 4)}
	s := startTestScheduler(t, clock, runner, "09:00")
	clock.waitArmed(t)

	next := s.NextFires()["09:00"]
	want := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next fire = %v, want %v", next, want)
	}
}

func TestSchedulerFiresEarliestSlotFirst(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	runner := &fakeRunner{fired: make(chan string, 4)}
	startTestScheduler(t, clock, runner, "12:00", "09:00")
	clock.waitArmed(t)

	clock.Advance(time.Hour)
	if slot := runner.waitFired(t); slot != "09:00" {
		t.Fatalf("fired slot %q, want 09:00", slot)
	}

	clock.waitArmed(t)
	clock.Advance(3 * time.Hour)
	if slot := runner.waitFired(t); slot != "12:00" {
		t.Fatalf("fired slot %q, want 12:00", slot)
	}
}

func TestSchedulerRearmsAfterCycleError(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 3, 10, 8, 59, 0, 0, time.UTC))
	runner := &fakeRunner{fired: make(chan string, 4), err: errors.New("dispatch failed")}
	s := startTestScheduler(t, clock, runner, "09:00")
	clock.waitArmed(t)

	clock.Advance(time.Minute)
	runner.waitFired(t)

	clock.waitArmed(t)
	next := s.NextFires()["09:00"]
	want := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("failed cycle must still re-arm: next = %v, want %v", next, want)
	}
}

func TestNewSchedulerRejectsInvalidSlot(t *testing.T) {
	_, err := NewScheduler(SchedulerConfig{
		Slots:  []string{"25:00"},
		Runner: &fakeRunner{fired: make(chan string, 1)},
		Logger: logging.NewLogger(),
	})
	if err == nil {
		t.Fatal("expected error for invalid slot label")
	}

	_, err = NewScheduler(SchedulerConfig{
		Runner: &fakeRunner{fired: make(chan string, 1)},
		Logger: logging.NewLogger(),
	})
	if err == nil {
		t.Fatal("expected error for empty slot list")
	}
}
