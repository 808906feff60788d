package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	alerts "playtrack/internal/alerts/domain"
)

// AlertSource fetches pending alerts and acknowledges them.
type AlertSource interface {
	FetchPending(ctx context.Context) ([]alerts.Alert, error)
	Acknowledge(ctx context.Context, id string) error
}

// AlertPoller fetches pending alerts on a fixed cadence. The server delivers
// at-least-once; the poller deduplicates alerts it already surfaced by id,
// so a reconnecting or newly opened viewer replays only what it missed.
type AlertPoller struct {
	source   AlertSource
	interval time.Duration
	schedule *Schedule
	onAlert  func(alerts.Alert)
	logger   *log.Logger
	timeout  time.Duration

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewAlertPoller constructs a poller. onAlert fires once per alert id.
func NewAlertPoller(source AlertSource, interval time.Duration, onAlert func(alerts.Alert), logger *log.Logger) (*AlertPoller, error) {
	if source == nil {
		return nil, errors.New("poller: nil source")
	}
	if interval <= 0 {
		return nil, errors.New("poller: interval must be positive")
	}
	return &AlertPoller{
		source:   source,
		interval: interval,
		schedule: NewSchedule(interval, interval, 8*interval),
		onAlert:  onAlert,
		logger:   logger,
		timeout:  10 * time.Second,
		seen:     make(map[string]struct{}),
	}, nil
}

// Run executes the poll loop until the context is cancelled.
func (p *AlertPoller) Run(ctx context.Context) {
	if p == nil {
		return
	}
	for {
		p.tick(ctx)

		delay := time.NewTimer(p.schedule.Next())
		select {
		case <-ctx.Done():
			delay.Stop()
			return
		case <-delay.C:
		}
	}
}

// Acknowledge acknowledges an alert and marks it surfaced locally.
func (p *AlertPoller) Acknowledge(ctx context.Context, id string) error {
	if p == nil {
		return errors.New("poller: nil poller")
	}
	ackCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.source.Acknowledge(ackCtx, id); err != nil {
		return err
	}
	p.mu.Lock()
	p.seen[id] = struct{}{}
	p.mu.Unlock()
	return nil
}

func (p *AlertPoller) tick(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pending, err := p.source.FetchPending(fetchCtx)
	if err != nil {
		p.schedule.ObserveError()
		if p.logger != nil {
			p.logger.Printf("alert poll error: %v", err)
		}
		return
	}
	p.schedule.ObserveChanged()

	fresh := p.markSeen(pending)
	if p.onAlert != nil {
		for _, alert := range fresh {
			p.onAlert(alert)
		}
	}
}

// markSeen records newly observed ids and drops ids no longer pending, so
// the dedup set stays bounded. Alert ids are never reissued, making the
// pruning safe.
func (p *AlertPoller) markSeen(pending []alerts.Alert) []alerts.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]struct{}, len(pending))
	var fresh []alerts.Alert
	for _, alert := range pending {
		current[alert.ID] = struct{}{}
		if _, ok := p.seen[alert.ID]; !ok {
			fresh = append(fresh, alert)
		}
	}
	p.seen = current
	return fresh
}
