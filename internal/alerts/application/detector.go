package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/segmentio/ksuid"

	alerts "playtrack/internal/alerts/domain"
	"playtrack/internal/observability/metrics"
	timers "playtrack/internal/timers/domain"
)

// Detector scans running timers and records threshold crossings.
//
// A crossing is detected with a time window test: an alert for threshold T
// is due while remaining time lies in (T − window, T]. As long as the sweep
// tick interval stays strictly below the window width, every crossing is
// seen by at least one tick, and the liveness-scoped uniqueness of alert
// rows makes it recorded by at most one.
type Detector struct {
	timers     timers.Repository
	alerts     alerts.Repository
	thresholds []int
	window     time.Duration
	logger     *log.Logger
}

// NewDetector constructs a detector. Thresholds are minutes, deduplicated
// and evaluated largest first.
func NewDetector(timerRepo timers.Repository, alertRepo alerts.Repository, thresholdMinutes []int, window time.Duration, logger *log.Logger) (*Detector, error) {
	if timerRepo == nil || alertRepo == nil {
		return nil, errors.New("detector: nil repository")
	}
	if len(thresholdMinutes) == 0 {
		return nil, errors.New("detector: no thresholds")
	}
	if window <= 0 {
		return nil, errors.New("detector: window must be positive")
	}
	seen := make(map[int]struct{}, len(thresholdMinutes))
	thresholds := make([]int, 0, len(thresholdMinutes))
	for _, threshold := range thresholdMinutes {
		if threshold <= 0 {
			return nil, errors.New("detector: thresholds must be positive")
		}
		if _, dup := seen[threshold]; dup {
			continue
		}
		seen[threshold] = struct{}{}
		thresholds = append(thresholds, threshold)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(thresholds)))
	return &Detector{
		timers:     timerRepo,
		alerts:     alertRepo,
		thresholds: thresholds,
		window:     window,
		logger:     logger,
	}, nil
}

// Sweep evaluates all running timers once. A failure on one timer is logged
// and skipped; the next tick retries it.
func (d *Detector) Sweep(ctx context.Context, now time.Time) error {
	if d == nil {
		return errors.New("detector: nil detector")
	}
	started := time.Now()
	running, err := d.timers.ListByStatuses(ctx, timers.StatusActive, timers.StatusAlert)
	if err != nil {
		metrics.ObserveSweep("error", time.Since(started).Seconds())
		return err
	}
	for _, timer := range running {
		if err := d.evaluateTimer(ctx, timer, now); err != nil {
			metrics.IncSweepTimerError()
			if d.logger != nil {
				d.logger.Printf("sweep: timer evaluation failed: timer=%s err=%v", timer.ID, err)
			}
		}
	}
	metrics.ObserveSweep("success", time.Since(started).Seconds())
	return nil
}

func (d *Detector) evaluateTimer(ctx context.Context, timer timers.Timer, now time.Time) error {
	// Heal any stale alerts left behind by an extension whose purge failed.
	if purged, err := d.alerts.DeleteStale(ctx, timer.ID, timer.EndAt); err != nil {
		return err
	} else if purged > 0 {
		metrics.IncAlertEvent("purged")
		if d.logger != nil {
			d.logger.Printf("sweep: purged %d stale alerts: timer=%s", purged, timer.ID)
		}
	}

	remaining := timer.Remaining(now)
	if remaining <= 0 {
		done, err := d.timers.Terminate(ctx, timer.ID, timers.StatusEnded, now.UTC())
		if err != nil {
			return err
		}
		if done {
			if failed, err := d.alerts.MarkFailedByTimer(ctx, timer.ID, now.UTC()); err != nil {
				return err
			} else if failed > 0 {
				metrics.IncAlertEvent("failed")
			}
		}
		return nil
	}

	for _, threshold := range d.thresholds {
		upper := time.Duration(threshold) * time.Minute
		if remaining > upper || remaining <= upper-d.window {
			continue
		}
		existing, err := d.alerts.FindLive(ctx, timer.ID, threshold, timer.EndAt)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		// Status flips before the alert row exists, so a reader never sees
		// an alert for a timer still marked active.
		if timer.Status != timers.StatusAlert {
			if _, err := d.timers.TransitionStatus(ctx, timer.ID, timer.Status, timers.StatusAlert, now.UTC()); err != nil {
				return err
			}
			timer.Status = timers.StatusAlert
		}
		alert := &alerts.Alert{
			ID:               ksuid.New().String(),
			TenantID:         timer.TenantID,
			LocationID:       timer.LocationID,
			TimerID:          timer.ID,
			ThresholdMinutes: threshold,
			TimerEndAt:       timer.EndAt,
			TriggeredAt:      now.UTC(),
			Status:           alerts.StatusPending,
			CreatedAt:        now.UTC(),
			UpdatedAt:        now.UTC(),
		}
		created, err := d.alerts.Create(ctx, alert)
		if err != nil {
			return err
		}
		if created {
			metrics.IncAlertEvent("created")
		}
	}
	return nil
}
