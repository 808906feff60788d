package application

import (
	"context"
	"errors"
	"time"

	alerts "playtrack/internal/alerts/domain"
	"playtrack/internal/auth"
	"playtrack/internal/observability/metrics"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service handles alert acknowledgment, recovery reads and stale purges.
type Service struct {
	repo     alerts.Repository
	clock    Clock
	tenantID string
}

// ServiceOption customizes the alert service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs an alert service.
func NewService(repo alerts.Repository, tenantID string, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("alerts: nil repository")
	}
	if tenantID == "" {
		return nil, errors.New("alerts: empty tenant id")
	}
	service := &Service{repo: repo, clock: systemClock{}, tenantID: tenantID}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Acknowledge marks an alert acknowledged. Idempotent: acknowledging an
// already-acknowledged alert, or an id unknown to the caller's tenant,
// succeeds without state change. Multiple viewers race on the same alert.
func (s *Service) Acknowledge(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil || alert.TenantID != s.tenant(ctx) {
		// Unknown or foreign id: no-op success, existence is not leaked.
		return nil, nil
	}
	if alert.Status != alerts.StatusPending {
		return alert, nil
	}
	ackedAt := s.clock.Now().UTC()
	if err := s.repo.MarkAcknowledged(ctx, alert.ID, ackedAt); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusAcknowledged
	alert.AckedAt = ackedAt
	alert.UpdatedAt = ackedAt
	metrics.IncAlertEvent("acknowledged")
	return alert, nil
}

// ListPending returns every pending alert for a location, oldest first. This
// is the recovery path for viewers that were disconnected or backgrounded.
func (s *Service) ListPending(ctx context.Context, locationID string) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if locationID == "" {
		return nil, errors.New("alerts: location id required")
	}
	return s.repo.ListPendingByLocation(ctx, s.tenant(ctx), locationID)
}

// PurgeStale deletes alerts created for any end_at other than the current
// one. Implements the extension coordinator's arena-style replacement.
func (s *Service) PurgeStale(ctx context.Context, timerID string, timerEndAt time.Time) (int, error) {
	if s == nil {
		return 0, errors.New("alerts: nil service")
	}
	return s.repo.DeleteStale(ctx, timerID, timerEndAt)
}

// PurgeByTimer deletes every alert of a timer (cancellation, archival).
func (s *Service) PurgeByTimer(ctx context.Context, timerID string) (int, error) {
	if s == nil {
		return 0, errors.New("alerts: nil service")
	}
	return s.repo.DeleteByTimer(ctx, timerID)
}

// FailPending fails the timer's unacknowledged alerts when it terminates.
func (s *Service) FailPending(ctx context.Context, timerID string, at time.Time) (int, error) {
	if s == nil {
		return 0, errors.New("alerts: nil service")
	}
	return s.repo.MarkFailedByTimer(ctx, timerID, at)
}

func (s *Service) tenant(ctx context.Context) string {
	if tenantID := auth.TenantIDFromContext(ctx); tenantID != "" {
		return tenantID
	}
	return s.tenantID
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
