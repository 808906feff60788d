package poller

import (
	"math/rand"
	"sync"
	"time"
)

const (
	defaultGrowth = 1.5
	defaultJitter = 0.1
)

// Schedule computes poll delays from observed outcomes: geometric growth
// toward the ceiling while nothing changes, reset to the floor on change,
// and exponential backoff on transport errors, capped independently of the
// change-based growth.
type Schedule struct {
	floor      time.Duration
	ceiling    time.Duration
	backoffMax time.Duration
	growth     float64
	jitter     float64

	mu        sync.Mutex
	interval  time.Duration
	unchanged int
	failures  int
	rand      *rand.Rand
}

// NewSchedule constructs a schedule starting at the floor interval.
func NewSchedule(floor, ceiling, backoffMax time.Duration) *Schedule {
	if floor <= 0 {
		floor = 5 * time.Second
	}
	if ceiling < floor {
		ceiling = floor
	}
	if backoffMax <= 0 {
		backoffMax = ceiling
	}
	return &Schedule{
		floor:      floor,
		ceiling:    ceiling,
		backoffMax: backoffMax,
		growth:     defaultGrowth,
		jitter:     defaultJitter,
		interval:   floor,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ObserveChanged resets the cadence to the floor.
func (s *Schedule) ObserveChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = 0
	s.unchanged = 0
	s.interval = s.floor
}

// ObserveUnchanged grows the interval geometrically toward the ceiling. The
// first success after transport errors returns to the floor instead of
// growing from the backoff delay.
func (s *Schedule) ObserveUnchanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures = 0
		s.unchanged = 1
		s.interval = s.floor
		return
	}
	s.unchanged++
	grown := time.Duration(float64(s.interval) * s.growth)
	if grown > s.ceiling {
		grown = s.ceiling
	}
	s.interval = grown
}

// ObserveError applies exponential backoff, capped at the maximum delay.
func (s *Schedule) ObserveError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	backoff := s.floor << uint(s.failures-1)
	if backoff > s.backoffMax || backoff <= 0 {
		backoff = s.backoffMax
	}
	s.interval = backoff
}

// Reset returns the cadence to the floor, e.g. when the surface becomes
// visible again.
func (s *Schedule) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = 0
	s.unchanged = 0
	s.interval = s.floor
}

// Next returns the delay until the next tick, perturbed by a small random
// percentage so many simultaneous viewers never synchronize.
func (s *Schedule) Next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	spread := float64(s.interval) * s.jitter
	offset := (s.rand.Float64()*2 - 1) * spread
	next := time.Duration(float64(s.interval) + offset)
	if next < time.Millisecond {
		next = time.Millisecond
	}
	return next
}

// Interval returns the current un-jittered interval.
func (s *Schedule) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// UnchangedCount returns the consecutive unchanged observations.
func (s *Schedule) UnchangedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unchanged
}
