package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timers "playtrack/internal/timers/domain"
)

type fakeTimerSource struct {
	mu           sync.Mutex
	snapshots    []TimerSnapshot
	err          error
	fingerprints []string
}

func (s *fakeTimerSource) FetchTimers(_ context.Context, fingerprint string) (TimerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingerprints = append(s.fingerprints, fingerprint)
	if s.err != nil {
		return TimerSnapshot{}, s.err
	}
	snapshot := s.snapshots[0]
	if len(s.snapshots) > 1 {
		s.snapshots = s.snapshots[1:]
	}
	return snapshot, nil
}

func (s *fakeTimerSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fingerprints)
}

func (s *fakeTimerSource) sentFingerprints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fingerprints...)
}

func TestTimerPollerAppliesChangedSnapshot(t *testing.T) {
	source := &fakeTimerSource{snapshots: []TimerSnapshot{
		{Fingerprint: "fp-1", Timers: []timers.Timer{{ID: "timer-1"}}},
	}}
	var got []timers.Timer
	poller, err := NewTimerPoller(source, NewSchedule(time.Second, time.Minute, time.Minute), func(list []timers.Timer) {
		got = list
	}, nil)
	require.NoError(t, err)

	poller.tick(context.Background())

	assert.Equal(t, "fp-1", poller.Fingerprint())
	require.Len(t, got, 1)
	assert.Equal(t, "timer-1", got[0].ID)
	// First fetch is unconditional.
	assert.Equal(t, []string{""}, source.sentFingerprints())
}

func TestTimerPollerUnchangedGrowsCadence(t *testing.T) {
	source := &fakeTimerSource{snapshots: []TimerSnapshot{
		{Fingerprint: "fp-1"},
		{Unchanged: true, Fingerprint: "fp-1"},
	}}
	schedule := NewSchedule(time.Second, time.Minute, time.Minute)
	var updates int
	poller, err := NewTimerPoller(source, schedule, func([]timers.Timer) { updates++ }, nil)
	require.NoError(t, err)

	poller.tick(context.Background())
	poller.tick(context.Background())

	assert.Equal(t, "fp-1", poller.Fingerprint())
	assert.Equal(t, 1, updates, "unchanged snapshot must not trigger an update")
	assert.Greater(t, schedule.Interval(), time.Second)
	// Second fetch is conditional on the applied fingerprint.
	assert.Equal(t, []string{"", "fp-1"}, source.sentFingerprints())
}

func TestTimerPollerErrorKeepsFingerprintAndBacksOff(t *testing.T) {
	source := &fakeTimerSource{snapshots: []TimerSnapshot{{Fingerprint: "fp-1"}}}
	schedule := NewSchedule(time.Second, time.Minute, time.Minute)
	poller, err := NewTimerPoller(source, schedule, nil, nil)
	require.NoError(t, err)

	poller.tick(context.Background())
	source.err = errors.New("boom")
	poller.tick(context.Background())
	source.err = errors.New("boom")
	poller.tick(context.Background())

	assert.Equal(t, "fp-1", poller.Fingerprint())
	assert.Equal(t, 2*time.Second, schedule.Interval())
}

func TestTimerPollerVisibilityResumeForcesUnconditionalFetch(t *testing.T) {
	source := &fakeTimerSource{snapshots: []TimerSnapshot{{Fingerprint: "fp-1"}}}
	schedule := NewSchedule(time.Second, time.Minute, time.Minute)
	for i := 0; i < 5; i++ {
		schedule.ObserveUnchanged()
	}
	poller, err := NewTimerPoller(source, schedule, nil, nil)
	require.NoError(t, err)

	poller.tick(context.Background())
	require.Equal(t, "fp-1", poller.Fingerprint())

	poller.SetVisible(false)
	poller.SetVisible(true)

	assert.Equal(t, "", poller.Fingerprint(), "resume must drop the fingerprint")
	assert.Equal(t, time.Second, schedule.Interval(), "resume must reset the cadence")
}

func TestTimerPollerRunPausesWhileHidden(t *testing.T) {
	source := &fakeTimerSource{snapshots: []TimerSnapshot{{Fingerprint: "fp-1"}}}
	poller, err := NewTimerPoller(source, NewSchedule(5*time.Millisecond, 10*time.Millisecond, 10*time.Millisecond), nil, nil)
	require.NoError(t, err)
	poller.SetVisible(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, source.calls(), "hidden poller must not fetch")

	poller.SetVisible(true)
	require.Eventually(t, func() bool { return source.calls() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancellation")
	}
}
