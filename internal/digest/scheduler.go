package digest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
)

// Clock abstracts wall-clock access so scheduler tests run on a
// virtual clock instead of real timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// CycleRunner runs one digest cycle for a slot. Implemented by Composer.
type CycleRunner interface {
	RunCycle(ctx context.Context, slotLabel string) error
}

type SchedulerConfig struct {
	Slots    []string // "HH:MM" labels, e.g. "09:00"
	Location *time.Location
	Runner   CycleRunner
	Clock    Clock
	Logger   logging.Logger
}

// Scheduler fires each configured daily slot at its wall-clock time in
// the configured timezone, re-arming unconditionally after every
// firing. Cycles are serialized so overlapping slots cannot interleave
// their state reads and writes.
type Scheduler struct {
	slots    []string
	location *time.Location
	runner   CycleRunner
	clock    Clock
	logger   logging.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	running   bool
	nextFires map[string]time.Time

	cycleMu sync.Mutex
}

func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if len(cfg.Slots) == 0 {
		return nil, fmt.Errorf("at least one digest slot is required")
	}
	for _, slot := range cfg.Slots {
		if _, _, err := parseSlot(slot); err != nil {
			return nil, err
		}
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("cycle runner is required")
	}
	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Scheduler{
		slots:     cfg.Slots,
		location:  location,
		runner:    cfg.Runner,
		clock:     clock,
		logger:    cfg.Logger,
		nextFires: make(map[string]time.Time),
	}, nil
}

// Start arms all slots and blocks until the context is cancelled or
// Stop is called. Callers run it in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	now := s.clock.Now().In(s.location)
	for _, slot := range s.slots {
		s.nextFires[slot] = s.nextFireAt(slot, now)
	}
	s.mu.Unlock()

	s.logger.WithFields(logging.Fields{
		"slots":    s.slots,
		"timezone": s.location.String(),
	}).Info("Digest scheduler started")

	s.run(ctx)
}

// Stop cancels all pending fires. In-flight cycles finish on their own;
// no new firings are scheduled. A later Start recomputes the schedule
// from the current wall clock.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.running = false
}

// NextFires returns a snapshot of each slot's next fire time.
func (s *Scheduler) NextFires() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]time.Time, len(s.nextFires))
	for slot, at := range s.nextFires {
		snapshot[slot] = at
	}
	return snapshot
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		now := s.clock.Now().In(s.location)
		slot, fireAt := s.earliest()
		wait := fireAt.Sub(now)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(wait):
			// Stop prevents further firings but does not interrupt a
			// cycle already underway.
			s.fire(context.WithoutCancel(ctx), slot)
			s.mu.Lock()
			// Re-arm unconditionally, whatever the cycle outcome.
			s.nextFires[slot] = s.nextFireAt(slot, s.clock.Now().In(s.location))
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) earliest() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var bestSlot string
	var bestAt time.Time
	for _, slot := range s.slots {
		at := s.nextFires[slot]
		if bestSlot == "" || at.Before(bestAt) {
			bestSlot = slot
			bestAt = at
		}
	}
	return bestSlot, bestAt
}

func (s *Scheduler) fire(ctx context.Context, slot string) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logging.Fields{
				"slot":  slot,
				"panic": fmt.Sprint(r),
			}).Error("Digest cycle panic")
		}
	}()

	if err := s.runner.RunCycle(ctx, slot); err != nil {
		s.logger.WithError(err).WithField("slot", slot).Warn("Digest cycle failed")
	}
}

// nextFireAt computes the slot's next occurrence strictly after now:
// today's slot time if still in the future, else tomorrow's. DST shifts
// resolve to whatever the zone rules say for that wall-clock time; a
// skipped or repeated hour may skip or double-fire a slot once.
func (s *Scheduler) nextFireAt(slot string, now time.Time) time.Time {
	hour, minute, err := parseSlot(slot)
	if err != nil {
		// Validated in NewScheduler; unreachable for armed slots.
		return now.AddDate(0, 0, 1)
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.location)
	if !candidate.After(now) {
		candidate = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, s.location)
	}
	return candidate
}

func parseSlot(slot string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", slot)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid digest slot %q: %w", slot, err)
	}
	return t.Hour(), t.Minute(), nil
}
