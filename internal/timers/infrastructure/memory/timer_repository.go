package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tidwall/btree"

	timers "playtrack/internal/timers/domain"
)

type endKey struct {
	endAt time.Time
	id    string
}

func lessEndKey(a, b endKey) bool {
	if !a.endAt.Equal(b.endAt) {
		return a.endAt.Before(b.endAt)
	}
	return a.id < b.id
}

// TimerRepository is an in-memory repository for timers, ordered by end_at
// so list operations come back in expiry order like the SQL repository.
type TimerRepository struct {
	mu    sync.RWMutex
	byID  map[string]*timers.Timer
	byEnd *btree.BTreeG[endKey]
}

// NewTimerRepository constructs a repository.
func NewTimerRepository() *TimerRepository {
	return &TimerRepository{
		byID:  make(map[string]*timers.Timer),
		byEnd: btree.NewBTreeG(lessEndKey),
	}
}

// Create inserts a new timer.
func (r *TimerRepository) Create(ctx context.Context, timer *timers.Timer) error {
	_ = ctx
	if timer == nil {
		return errors.New("timer repo: nil timer")
	}
	if timer.ID == "" || timer.TenantID == "" || timer.LocationID == "" {
		return errors.New("timer repo: missing fields")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[timer.ID]; exists {
		return errors.New("timer repo: duplicate id")
	}
	stored := *timer
	r.byID[timer.ID] = &stored
	r.byEnd.Set(endKey{endAt: stored.EndAt, id: stored.ID})
	return nil
}

// GetByID fetches a timer by id.
func (r *TimerRepository) GetByID(ctx context.Context, id string) (*timers.Timer, error) {
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

// ListActiveByLocation returns non-terminal timers for a location ordered by end_at.
func (r *TimerRepository) ListActiveByLocation(ctx context.Context, tenantID, locationID string) ([]timers.Timer, error) {
	_ = ctx
	return r.collect(func(t *timers.Timer) bool {
		return !t.Terminal() && t.TenantID == tenantID && t.LocationID == locationID
	}), nil
}

// ListByStatuses returns timers in any of the given statuses.
func (r *TimerRepository) ListByStatuses(ctx context.Context, statuses ...string) ([]timers.Timer, error) {
	_ = ctx
	wanted := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}
	return r.collect(func(t *timers.Timer) bool {
		_, ok := wanted[t.Status]
		return ok
	}), nil
}

// TransitionStatus moves a timer between two specific statuses.
func (r *TimerRepository) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	stored.UpdatedAt = at
	return true, nil
}

// ApplyExtension rewrites end_at, extension total and status on a non-terminal
// timer, rejecting the write when updated_at no longer matches.
func (r *TimerRepository) ApplyExtension(ctx context.Context, id string, endAt time.Time, extendedTotal int, status string, expectedUpdatedAt, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok || stored.Terminal() || !stored.UpdatedAt.Equal(expectedUpdatedAt) {
		return false, nil
	}
	r.byEnd.Delete(endKey{endAt: stored.EndAt, id: stored.ID})
	stored.EndAt = endAt
	stored.ExtendedMinutesTotal = extendedTotal
	stored.Status = status
	stored.UpdatedAt = at
	r.byEnd.Set(endKey{endAt: stored.EndAt, id: stored.ID})
	return true, nil
}

// Terminate moves a non-terminal timer into a terminal status.
func (r *TimerRepository) Terminate(ctx context.Context, id, status string, at time.Time) (bool, error) {
	_ = ctx
	if status != timers.StatusEnded && status != timers.StatusCancelled {
		return false, errors.New("timer repo: status not terminal")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok || stored.Terminal() {
		return false, nil
	}
	stored.Status = status
	stored.UpdatedAt = at
	return true, nil
}

// ActiveFingerprint returns the count and latest updated_at of the non-terminal set.
func (r *TimerRepository) ActiveFingerprint(ctx context.Context, tenantID, locationID string) (int, time.Time, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int
	var latest time.Time
	for _, stored := range r.byID {
		if stored.Terminal() || stored.TenantID != tenantID || stored.LocationID != locationID {
			continue
		}
		count++
		if stored.UpdatedAt.After(latest) {
			latest = stored.UpdatedAt
		}
	}
	return count, latest, nil
}

// CountByStatus returns the status histogram for a location.
func (r *TimerRepository) CountByStatus(ctx context.Context, tenantID, locationID string) (map[string]int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	histogram := make(map[string]int)
	for _, stored := range r.byID {
		if stored.TenantID != tenantID || stored.LocationID != locationID {
			continue
		}
		histogram[stored.Status]++
	}
	return histogram, nil
}

// ListTerminatedBefore returns ids of terminal timers untouched since cutoff.
func (r *TimerRepository) ListTerminatedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, stored := range r.byID {
		if stored.Terminal() && stored.UpdatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete removes a timer.
func (r *TimerRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[id]
	if !ok {
		return nil
	}
	r.byEnd.Delete(endKey{endAt: stored.EndAt, id: id})
	delete(r.byID, id)
	return nil
}

func (r *TimerRepository) collect(keep func(*timers.Timer) bool) []timers.Timer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []timers.Timer
	r.byEnd.Scan(func(key endKey) bool {
		stored, ok := r.byID[key.id]
		if ok && keep(stored) {
			result = append(result, *stored)
		}
		return true
	})
	return result
}
