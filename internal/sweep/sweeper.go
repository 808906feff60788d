package sweep

import (
	"context"
	"log"
	"time"
)

// Detector is the per-tick evaluation the sweeper drives.
type Detector interface {
	Sweep(ctx context.Context, now time.Time) error
}

// Sweeper runs the alert detector on a fixed tick. One sweeper per
// deployment: it is the single writer for alert creation.
type Sweeper struct {
	detector Detector
	interval time.Duration
	logger   *log.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(detector Detector, interval time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{detector: detector, interval: interval, logger: logger}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if s == nil || s.detector == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.detector.Sweep(ctx, now.UTC()); err != nil && s.logger != nil {
				s.logger.Printf("sweep tick error: %v", err)
			}
		}
	}
}
