package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleGrowsToCeilingWhileUnchanged(t *testing.T) {
	schedule := NewSchedule(2*time.Second, 30*time.Second, time.Minute)
	require.Equal(t, 2*time.Second, schedule.Interval())

	for i := 0; i < 10; i++ {
		schedule.ObserveUnchanged()
	}
	assert.Equal(t, 30*time.Second, schedule.Interval())
	assert.Equal(t, 10, schedule.UnchangedCount())
}

func TestScheduleChangeResetsToFloor(t *testing.T) {
	schedule := NewSchedule(2*time.Second, 30*time.Second, time.Minute)
	for i := 0; i < 5; i++ {
		schedule.ObserveUnchanged()
	}
	require.Greater(t, schedule.Interval(), 2*time.Second)

	schedule.ObserveChanged()
	assert.Equal(t, 2*time.Second, schedule.Interval())
	assert.Equal(t, 0, schedule.UnchangedCount())
}

func TestScheduleErrorBackoffDoublesAndCaps(t *testing.T) {
	schedule := NewSchedule(2*time.Second, 30*time.Second, 10*time.Second)

	schedule.ObserveError()
	assert.Equal(t, 2*time.Second, schedule.Interval())
	schedule.ObserveError()
	assert.Equal(t, 4*time.Second, schedule.Interval())
	schedule.ObserveError()
	assert.Equal(t, 8*time.Second, schedule.Interval())
	schedule.ObserveError()
	assert.Equal(t, 10*time.Second, schedule.Interval())
	schedule.ObserveError()
	assert.Equal(t, 10*time.Second, schedule.Interval())
}

func TestScheduleSuccessClearsBackoff(t *testing.T) {
	schedule := NewSchedule(2*time.Second, 30*time.Second, time.Minute)
	schedule.ObserveError()
	schedule.ObserveError()
	require.Equal(t, 4*time.Second, schedule.Interval())

	schedule.ObserveChanged()
	assert.Equal(t, 2*time.Second, schedule.Interval())
}

func TestScheduleUnchangedAfterErrorsResetsToFloor(t *testing.T) {
	schedule := NewSchedule(2*time.Second, 30*time.Second, time.Minute)
	for i := 0; i < 5; i++ {
		schedule.ObserveError()
	}
	require.Equal(t, 32*time.Second, schedule.Interval())

	// The first successful poll after an outage returns to the floor, not
	// to growth compounded on the backoff delay.
	schedule.ObserveUnchanged()
	assert.Equal(t, 2*time.Second, schedule.Interval())
	assert.Equal(t, 1, schedule.UnchangedCount())

	schedule.ObserveUnchanged()
	assert.Equal(t, 3*time.Second, schedule.Interval())
}

func TestScheduleNextStaysWithinJitterBand(t *testing.T) {
	schedule := NewSchedule(10*time.Second, 30*time.Second, time.Minute)
	for i := 0; i < 100; i++ {
		next := schedule.Next()
		assert.GreaterOrEqual(t, next, 9*time.Second)
		assert.LessOrEqual(t, next, 11*time.Second)
	}
}
