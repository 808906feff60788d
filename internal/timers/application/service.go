package application

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"playtrack/internal/auth"
	"playtrack/internal/observability/metrics"
	timers "playtrack/internal/timers/domain"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// AlertCoordinator reconciles alert records with timer mutations. Implemented
// by the alert service; invoked synchronously from extend/end/cancel so stale
// alerts never outlive the operation that invalidated them.
type AlertCoordinator interface {
	PurgeStale(ctx context.Context, timerID string, timerEndAt time.Time) (int, error)
	PurgeByTimer(ctx context.Context, timerID string) (int, error)
	FailPending(ctx context.Context, timerID string, at time.Time) (int, error)
}

// CreateInput carries the fields a sale creation provides.
type CreateInput struct {
	LocationID        string `json:"location_id"`
	SaleID            string `json:"sale_id"`
	ServiceID         string `json:"service_id"`
	ChildName         string `json:"child_name"`
	DurationMinutes   int    `json:"duration_minutes"`
	StartDelayMinutes int    `json:"start_delay_minutes"`
}

// Service handles timer lifecycle operations.
type Service struct {
	repo        timers.Repository
	coordinator AlertCoordinator
	clock       Clock
	logger      *log.Logger
	tenantID    string
}

// ServiceOption customizes the timer service.
type ServiceOption func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs a timer service.
func NewService(repo timers.Repository, coordinator AlertCoordinator, tenantID string, logger *log.Logger, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("timers: nil repository")
	}
	if coordinator == nil {
		return nil, errors.New("timers: nil alert coordinator")
	}
	if tenantID == "" {
		return nil, errors.New("timers: empty tenant id")
	}
	service := &Service{
		repo:        repo,
		coordinator: coordinator,
		clock:       systemClock{},
		logger:      logger,
		tenantID:    tenantID,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create registers a timer for a new sale. A positive start delay leaves the
// timer scheduled until the promoter flips it to active.
func (s *Service) Create(ctx context.Context, input CreateInput) (*timers.Timer, error) {
	if s == nil {
		return nil, errors.New("timers: nil service")
	}
	if input.LocationID == "" {
		return nil, errors.New("timers: location id required")
	}
	if input.DurationMinutes <= 0 {
		return nil, errors.New("timers: duration must be positive")
	}
	if input.StartDelayMinutes < 0 {
		return nil, errors.New("timers: start delay must not be negative")
	}

	now := s.clock.Now().UTC()
	effectiveStart := now.Add(time.Duration(input.StartDelayMinutes) * time.Minute)
	status := timers.StatusActive
	if input.StartDelayMinutes > 0 {
		status = timers.StatusScheduled
	}
	timer := &timers.Timer{
		ID:                uuid.NewString(),
		TenantID:          s.tenant(ctx),
		LocationID:        input.LocationID,
		SaleID:            input.SaleID,
		ServiceID:         input.ServiceID,
		ChildName:         input.ChildName,
		DurationMinutes:   input.DurationMinutes,
		StartDelayMinutes: input.StartDelayMinutes,
		Status:            status,
		ScheduledStartAt:  now,
		EffectiveStartAt:  effectiveStart,
		EndAt:             effectiveStart.Add(time.Duration(input.DurationMinutes) * time.Minute),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, timer); err != nil {
		metrics.IncTimerOp("create", "error")
		return nil, err
	}
	metrics.IncTimerOp("create", "success")
	return timer, nil
}

// GetByID fetches a timer scoped to the caller's tenant.
func (s *Service) GetByID(ctx context.Context, id string) (*timers.Timer, error) {
	if s == nil {
		return nil, errors.New("timers: nil service")
	}
	timer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if timer == nil || timer.TenantID != s.tenant(ctx) {
		return nil, timers.ErrNotFound
	}
	return timer, nil
}

// extendAttempts bounds optimistic-lock retries on concurrent extends.
const extendAttempts = 3

// Extend adds minutes to a non-terminal timer and purges alerts that fired
// for the old end_at, in the same logical operation. The write carries the
// updated_at read beforehand, so a concurrent mutation forces a re-read
// instead of silently overwriting it.
func (s *Service) Extend(ctx context.Context, id string, addMinutes int) (*timers.Timer, error) {
	if s == nil {
		return nil, errors.New("timers: nil service")
	}
	if addMinutes <= 0 {
		return nil, errors.New("timers: extension minutes must be positive")
	}

	for attempt := 0; attempt < extendAttempts; attempt++ {
		timer, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if timer.Terminal() {
			metrics.IncTimerOp("extend", "rejected")
			return nil, timers.ErrNotExtendable
		}

		now := s.clock.Now().UTC()
		newEnd := timer.EndAt.Add(time.Duration(addMinutes) * time.Minute)
		status := timer.Status
		if status == timers.StatusAlert {
			status = timers.StatusActive
		}
		applied, err := s.repo.ApplyExtension(ctx, id, newEnd, timer.ExtendedMinutesTotal+addMinutes, status, timer.UpdatedAt, now)
		if err != nil {
			metrics.IncTimerOp("extend", "error")
			return nil, err
		}
		if !applied {
			// Lost the updated_at check to another writer; re-read and retry.
			continue
		}

		// Stale alerts carry the old end_at; a purge failure here is healed by
		// the next sweep tick, which re-runs the same delete.
		if purged, err := s.coordinator.PurgeStale(ctx, id, newEnd); err != nil {
			s.logf("timer extend: stale alert purge failed: timer=%s err=%v", id, err)
			metrics.IncAlertEvent("purge_error")
		} else if purged > 0 {
			metrics.IncAlertEvent("purged")
		}

		timer.EndAt = newEnd
		timer.ExtendedMinutesTotal += addMinutes
		timer.Status = status
		timer.UpdatedAt = now
		metrics.IncTimerOp("extend", "success")
		return timer, nil
	}

	metrics.IncTimerOp("extend", "rejected")
	return nil, timers.ErrConflict
}

// End stops a timer. Ending an already-ended timer is a no-op.
func (s *Service) End(ctx context.Context, id string) (*timers.Timer, error) {
	return s.terminate(ctx, id, timers.StatusEnded)
}

// Cancel voids a timer and discards its alerts.
func (s *Service) Cancel(ctx context.Context, id string) (*timers.Timer, error) {
	return s.terminate(ctx, id, timers.StatusCancelled)
}

func (s *Service) terminate(ctx context.Context, id, status string) (*timers.Timer, error) {
	if s == nil {
		return nil, errors.New("timers: nil service")
	}
	timer, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if timer.Terminal() {
		return timer, nil
	}
	now := s.clock.Now().UTC()
	done, err := s.repo.Terminate(ctx, id, status, now)
	if err != nil {
		metrics.IncTimerOp(status, "error")
		return nil, err
	}
	if done {
		if status == timers.StatusCancelled {
			if _, err := s.coordinator.PurgeByTimer(ctx, id); err != nil {
				s.logf("timer cancel: alert purge failed: timer=%s err=%v", id, err)
			}
		} else {
			if failed, err := s.coordinator.FailPending(ctx, id, now); err != nil {
				s.logf("timer end: alert fail failed: timer=%s err=%v", id, err)
			} else if failed > 0 {
				metrics.IncAlertEvent("failed")
			}
		}
	}
	timer.Status = status
	timer.UpdatedAt = now
	metrics.IncTimerOp(status, "success")
	return timer, nil
}

// ListActive returns the non-terminal timers of a location.
func (s *Service) ListActive(ctx context.Context, locationID string) ([]timers.Timer, error) {
	if s == nil {
		return nil, errors.New("timers: nil service")
	}
	if locationID == "" {
		return nil, errors.New("timers: location id required")
	}
	return s.repo.ListActiveByLocation(ctx, s.tenant(ctx), locationID)
}

// Histogram returns timer counts by status for day-close reconciliation.
func (s *Service) Histogram(ctx context.Context, locationID string) (map[string]int, error) {
	if s == nil {
		return nil, errors.New("timers: nil service")
	}
	if locationID == "" {
		return nil, errors.New("timers: location id required")
	}
	return s.repo.CountByStatus(ctx, s.tenant(ctx), locationID)
}

// Promote flips scheduled timers whose start delay has elapsed to active.
// Returns the number of timers promoted.
func (s *Service) Promote(ctx context.Context, now time.Time) (int, error) {
	if s == nil {
		return 0, errors.New("timers: nil service")
	}
	scheduled, err := s.repo.ListByStatuses(ctx, timers.StatusScheduled)
	if err != nil {
		return 0, err
	}
	var promoted int
	for _, timer := range scheduled {
		if timer.EffectiveStartAt.After(now) {
			continue
		}
		done, err := s.repo.TransitionStatus(ctx, timer.ID, timers.StatusScheduled, timers.StatusActive, now.UTC())
		if err != nil {
			s.logf("timer promote: timer=%s err=%v", timer.ID, err)
			continue
		}
		if done {
			promoted++
		}
	}
	return promoted, nil
}

// Archive removes terminal timers untouched for the retention period, with
// their alerts. Alerts go first so no alert ever outlives its timer.
func (s *Service) Archive(ctx context.Context, olderThan time.Duration) (int, error) {
	if s == nil {
		return 0, errors.New("timers: nil service")
	}
	cutoff := s.clock.Now().UTC().Add(-olderThan)
	ids, err := s.repo.ListTerminatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	var archived int
	for _, id := range ids {
		if _, err := s.coordinator.PurgeByTimer(ctx, id); err != nil {
			s.logf("timer archive: alert purge failed: timer=%s err=%v", id, err)
			continue
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			s.logf("timer archive: delete failed: timer=%s err=%v", id, err)
			continue
		}
		archived++
	}
	return archived, nil
}

func (s *Service) tenant(ctx context.Context) string {
	if tenantID := auth.TenantIDFromContext(ctx); tenantID != "" {
		return tenantID
	}
	return s.tenantID
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
