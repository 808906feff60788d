package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	timers "playtrack/internal/timers/domain"
)

// TimerSnapshot is one conditional fetch result.
type TimerSnapshot struct {
	Unchanged   bool
	Fingerprint string
	Timers      []timers.Timer
}

// TimerSource fetches the active timer snapshot. An empty fingerprint means
// an unconditional fetch.
type TimerSource interface {
	FetchTimers(ctx context.Context, fingerprint string) (TimerSnapshot, error)
}

// TimerPoller drives the adaptive timer polling loop of one viewer surface.
// While the surface is hidden the poller stops scheduling ticks; becoming
// visible again issues one immediate unconditional fetch and resumes at the
// floor cadence.
type TimerPoller struct {
	source   TimerSource
	schedule *Schedule
	onUpdate func([]timers.Timer)
	logger   *log.Logger
	timeout  time.Duration

	mu          sync.Mutex
	fingerprint string
	visible     bool
	wake        chan struct{}
}

// NewTimerPoller constructs a poller. onUpdate receives each changed snapshot.
func NewTimerPoller(source TimerSource, schedule *Schedule, onUpdate func([]timers.Timer), logger *log.Logger) (*TimerPoller, error) {
	if source == nil {
		return nil, errors.New("poller: nil source")
	}
	if schedule == nil {
		return nil, errors.New("poller: nil schedule")
	}
	return &TimerPoller{
		source:   source,
		schedule: schedule,
		onUpdate: onUpdate,
		logger:   logger,
		timeout:  10 * time.Second,
		visible:  true,
		wake:     make(chan struct{}, 1),
	}, nil
}

// SetVisible pauses or resumes polling for visibility transitions.
func (p *TimerPoller) SetVisible(visible bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	wasVisible := p.visible
	p.visible = visible
	if visible && !wasVisible {
		// Force the next fetch to be unconditional.
		p.fingerprint = ""
		p.schedule.Reset()
	}
	p.mu.Unlock()
	if visible && !wasVisible {
		p.signal()
	}
}

// Run executes the poll loop until the context is cancelled. Cancellation is
// cooperative: it stops scheduling further ticks, it does not interrupt an
// in-flight request beyond its own timeout.
func (p *TimerPoller) Run(ctx context.Context) {
	if p == nil {
		return
	}
	for {
		if !p.isVisible() {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
			}
			continue
		}

		p.tick(ctx)

		delay := time.NewTimer(p.schedule.Next())
		select {
		case <-ctx.Done():
			delay.Stop()
			return
		case <-p.wake:
			delay.Stop()
		case <-delay.C:
		}
	}
}

// Fingerprint returns the last applied fingerprint.
func (p *TimerPoller) Fingerprint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fingerprint
}

func (p *TimerPoller) tick(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snapshot, err := p.source.FetchTimers(fetchCtx, p.Fingerprint())
	switch {
	case err != nil:
		p.schedule.ObserveError()
		if p.logger != nil {
			p.logger.Printf("timer poll error: %v", err)
		}
	case snapshot.Unchanged:
		p.schedule.ObserveUnchanged()
	default:
		p.schedule.ObserveChanged()
		p.mu.Lock()
		p.fingerprint = snapshot.Fingerprint
		p.mu.Unlock()
		if p.onUpdate != nil {
			p.onUpdate(snapshot.Timers)
		}
	}
}

func (p *TimerPoller) isVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

func (p *TimerPoller) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
