package alerts

import (
	"context"
	"time"
)

// Repository persists alerts.
type Repository interface {
	// Create inserts a new alert. Returns false when a live alert for the
	// same (timer, threshold, timer_end_at) already exists.
	Create(ctx context.Context, alert *Alert) (bool, error)
	GetByID(ctx context.Context, id string) (*Alert, error)
	FindLive(ctx context.Context, timerID string, thresholdMinutes int, timerEndAt time.Time) (*Alert, error)
	// ListPendingByLocation returns pending alerts ordered by triggered_at.
	ListPendingByLocation(ctx context.Context, tenantID, locationID string) ([]Alert, error)
	MarkAcknowledged(ctx context.Context, id string, at time.Time) error
	// MarkFailedByTimer fails the timer's still-pending alerts, used when a
	// timer expires or is ended without every alert being acknowledged.
	MarkFailedByTimer(ctx context.Context, timerID string, at time.Time) (int, error)
	// DeleteStale removes alerts created for any end_at other than the given
	// one, regardless of status.
	DeleteStale(ctx context.Context, timerID string, timerEndAt time.Time) (int, error)
	DeleteByTimer(ctx context.Context, timerID string) (int, error)
}
