package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	alerts "playtrack/internal/alerts/domain"
)

type liveKey struct {
	timerID   string
	threshold int
	endAt     time.Time
}

// AlertRepository is an in-memory repository for alerts.
type AlertRepository struct {
	mu     sync.RWMutex
	byID   map[string]*alerts.Alert
	byLive map[liveKey]string
}

// NewAlertRepository constructs a repository.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{
		byID:   make(map[string]*alerts.Alert),
		byLive: make(map[liveKey]string),
	}
}

// Create inserts a new alert unless a live duplicate exists.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) (bool, error) {
	_ = ctx
	if alert == nil {
		return false, errors.New("alert repo: nil alert")
	}
	if alert.ID == "" || alert.TenantID == "" || alert.TimerID == "" || alert.LocationID == "" {
		return false, errors.New("alert repo: missing fields")
	}
	key := liveKey{timerID: alert.TimerID, threshold: alert.ThresholdMinutes, endAt: alert.TimerEndAt}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byLive[key]; exists {
		return false, nil
	}
	stored := *alert
	r.byID[alert.ID] = &stored
	r.byLive[key] = alert.ID
	return true, nil
}

// GetByID fetches an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

// FindLive returns the alert created for the given end_at, if any.
func (r *AlertRepository) FindLive(ctx context.Context, timerID string, thresholdMinutes int, timerEndAt time.Time) (*alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byLive[liveKey{timerID: timerID, threshold: thresholdMinutes, endAt: timerEndAt}]
	if !ok {
		return nil, nil
	}
	copied := *r.byID[id]
	return &copied, nil
}

// ListPendingByLocation returns pending alerts ordered by triggered_at.
func (r *AlertRepository) ListPendingByLocation(ctx context.Context, tenantID, locationID string) ([]alerts.Alert, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []alerts.Alert
	for _, stored := range r.byID {
		if stored.Status != alerts.StatusPending {
			continue
		}
		if stored.TenantID != tenantID || stored.LocationID != locationID {
			continue
		}
		result = append(result, *stored)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].TriggeredAt.Equal(result[j].TriggeredAt) {
			return result[i].TriggeredAt.Before(result[j].TriggeredAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// MarkAcknowledged marks an alert as acknowledged.
func (r *AlertRepository) MarkAcknowledged(ctx context.Context, id string, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil
	}
	stored.Status = alerts.StatusAcknowledged
	stored.AckedAt = at
	stored.UpdatedAt = at
	return nil
}

// MarkFailedByTimer fails all still-pending alerts of a timer.
func (r *AlertRepository) MarkFailedByTimer(ctx context.Context, timerID string, at time.Time) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var failed int
	for _, stored := range r.byID {
		if stored.TimerID == timerID && stored.Status == alerts.StatusPending {
			stored.Status = alerts.StatusFailed
			stored.UpdatedAt = at
			failed++
		}
	}
	return failed, nil
}

// DeleteStale removes alerts created for any end_at other than the given one.
func (r *AlertRepository) DeleteStale(ctx context.Context, timerID string, timerEndAt time.Time) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int
	for id, stored := range r.byID {
		if stored.TimerID == timerID && !stored.TimerEndAt.Equal(timerEndAt) {
			r.remove(id, stored)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteByTimer removes all alerts of a timer.
func (r *AlertRepository) DeleteByTimer(ctx context.Context, timerID string) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int
	for id, stored := range r.byID {
		if stored.TimerID == timerID {
			r.remove(id, stored)
			deleted++
		}
	}
	return deleted, nil
}

func (r *AlertRepository) remove(id string, stored *alerts.Alert) {
	delete(r.byID, id)
	delete(r.byLive, liveKey{timerID: stored.TimerID, threshold: stored.ThresholdMinutes, endAt: stored.TimerEndAt})
}
