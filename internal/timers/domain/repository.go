package timers

import (
	"context"
	"time"
)

// Repository persists timers.
type Repository interface {
	Create(ctx context.Context, timer *Timer) error
	GetByID(ctx context.Context, id string) (*Timer, error)
	// ListActiveByLocation returns non-terminal timers ordered by end_at.
	ListActiveByLocation(ctx context.Context, tenantID, locationID string) ([]Timer, error)
	// ListByStatuses returns timers in any of the given statuses across locations.
	ListByStatuses(ctx context.Context, statuses ...string) ([]Timer, error)
	// TransitionStatus moves a timer from one status to another. Returns false
	// when the timer was not in the expected status.
	TransitionStatus(ctx context.Context, id, from, to string, at time.Time) (bool, error)
	// ApplyExtension rewrites end_at and the extension total. Returns false
	// when the timer is already terminal or was modified since it was read,
	// detected by comparing updated_at against expectedUpdatedAt.
	ApplyExtension(ctx context.Context, id string, endAt time.Time, extendedTotal int, status string, expectedUpdatedAt, at time.Time) (bool, error)
	// Terminate moves a non-terminal timer into ended or cancelled. Returns
	// false when the timer was already terminal.
	Terminate(ctx context.Context, id, status string, at time.Time) (bool, error)
	// ActiveFingerprint returns the count and latest updated_at of the
	// non-terminal set, the inputs of the snapshot change fingerprint.
	ActiveFingerprint(ctx context.Context, tenantID, locationID string) (int, time.Time, error)
	CountByStatus(ctx context.Context, tenantID, locationID string) (map[string]int, error)
	// ListTerminatedBefore returns ids of terminal timers untouched since cutoff.
	ListTerminatedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error
}
