package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	timers "playtrack/internal/timers/domain"
)

// TimerRepository is a SQL repository for timers. Statements use $N
// placeholders, accepted by both the pgx and sqlite drivers.
type TimerRepository struct {
	db *sql.DB
}

// NewTimerRepository constructs a repository.
func NewTimerRepository(db *sql.DB) *TimerRepository {
	return &TimerRepository{db: db}
}

const timerColumns = `id, tenant_id, location_id, sale_id, service_id, child_name,
	duration_minutes, start_delay_minutes, extended_minutes_total, status,
	scheduled_start_at, effective_start_at, end_at, created_at, updated_at`

// Create inserts a new timer.
func (r *TimerRepository) Create(ctx context.Context, timer *timers.Timer) error {
	if r == nil || r.db == nil {
		return errors.New("timer repo: nil db")
	}
	if timer == nil {
		return errors.New("timer repo: nil timer")
	}
	if timer.ID == "" || timer.TenantID == "" || timer.LocationID == "" {
		return errors.New("timer repo: missing fields")
	}
	if timer.CreatedAt.IsZero() {
		timer.CreatedAt = time.Now().UTC()
	}
	if timer.UpdatedAt.IsZero() {
		timer.UpdatedAt = timer.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO timers (
	id, tenant_id, location_id, sale_id, service_id, child_name,
	duration_minutes, start_delay_minutes, extended_minutes_total, status,
	scheduled_start_at, effective_start_at, end_at, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9, $10,
	$11, $12, $13, $14, $15
)`,
		timer.ID,
		timer.TenantID,
		timer.LocationID,
		timer.SaleID,
		timer.ServiceID,
		timer.ChildName,
		timer.DurationMinutes,
		timer.StartDelayMinutes,
		timer.ExtendedMinutesTotal,
		timer.Status,
		timer.ScheduledStartAt,
		timer.EffectiveStartAt,
		timer.EndAt,
		timer.CreatedAt,
		timer.UpdatedAt,
	)
	return err
}

// GetByID fetches a timer by id.
func (r *TimerRepository) GetByID(ctx context.Context, id string) (*timers.Timer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("timer repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+timerColumns+`
FROM timers
WHERE id = $1`, id)
	return scanTimer(row)
}

// ListActiveByLocation returns non-terminal timers for a location ordered by end_at.
func (r *TimerRepository) ListActiveByLocation(ctx context.Context, tenantID, locationID string) ([]timers.Timer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("timer repo: nil db")
	}
	if tenantID == "" || locationID == "" {
		return nil, errors.New("timer repo: invalid query")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+timerColumns+`
FROM timers
WHERE tenant_id = $1 AND location_id = $2
	AND status IN ('scheduled', 'active', 'alert')
ORDER BY end_at ASC, id ASC`, tenantID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTimers(rows)
}

// ListByStatuses returns timers in any of the given statuses.
func (r *TimerRepository) ListByStatuses(ctx context.Context, statuses ...string) ([]timers.Timer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("timer repo: nil db")
	}
	if len(statuses) == 0 {
		return nil, errors.New("timer repo: no statuses")
	}
	placeholders := make([]string, 0, len(statuses))
	args := make([]any, 0, len(statuses))
	for i, status := range statuses {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, status)
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+timerColumns+`
FROM timers
WHERE status IN (`+strings.Join(placeholders, ", ")+`)
ORDER BY end_at ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTimers(rows)
}

// TransitionStatus moves a timer between two specific statuses.
func (r *TimerRepository) TransitionStatus(ctx context.Context, id, from, to string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("timer repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE timers
SET status = $1, updated_at = $2
WHERE id = $3 AND status = $4`, to, at, id, from)
	if err != nil {
		return false, err
	}
	return rowsAffected(result)
}

// ApplyExtension rewrites end_at, extension total and status on a non-terminal
// timer. The updated_at guard rejects writes against a row another writer
// touched after the caller read it.
func (r *TimerRepository) ApplyExtension(ctx context.Context, id string, endAt time.Time, extendedTotal int, status string, expectedUpdatedAt, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("timer repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE timers
SET end_at = $1, extended_minutes_total = $2, status = $3, updated_at = $4
WHERE id = $5 AND updated_at = $6 AND status NOT IN ('ended', 'cancelled')`,
		endAt, extendedTotal, status, at, id, expectedUpdatedAt)
	if err != nil {
		return false, err
	}
	return rowsAffected(result)
}

// Terminate moves a non-terminal timer into a terminal status.
func (r *TimerRepository) Terminate(ctx context.Context, id, status string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("timer repo: nil db")
	}
	if status != timers.StatusEnded && status != timers.StatusCancelled {
		return false, errors.New("timer repo: status not terminal")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE timers
SET status = $1, updated_at = $2
WHERE id = $3 AND status NOT IN ('ended', 'cancelled')`, status, at, id)
	if err != nil {
		return false, err
	}
	return rowsAffected(result)
}

// ActiveFingerprint returns the count and latest updated_at of the non-terminal set.
func (r *TimerRepository) ActiveFingerprint(ctx context.Context, tenantID, locationID string) (int, time.Time, error) {
	if r == nil || r.db == nil {
		return 0, time.Time{}, errors.New("timer repo: nil db")
	}
	var count int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM timers
WHERE tenant_id = $1 AND location_id = $2
	AND status IN ('scheduled', 'active', 'alert')`, tenantID, locationID).Scan(&count); err != nil {
		return 0, time.Time{}, err
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}
	var latest time.Time
	if err := r.db.QueryRowContext(ctx, `
SELECT updated_at
FROM timers
WHERE tenant_id = $1 AND location_id = $2
	AND status IN ('scheduled', 'active', 'alert')
ORDER BY updated_at DESC
LIMIT 1`, tenantID, locationID).Scan(&latest); err != nil {
		return 0, time.Time{}, err
	}
	return count, latest.UTC(), nil
}

// CountByStatus returns the status histogram for a location.
func (r *TimerRepository) CountByStatus(ctx context.Context, tenantID, locationID string) (map[string]int, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("timer repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT status, COUNT(*)
FROM timers
WHERE tenant_id = $1 AND location_id = $2
GROUP BY status`, tenantID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	histogram := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		histogram[status] = count
	}
	return histogram, rows.Err()
}

// ListTerminatedBefore returns ids of terminal timers untouched since cutoff.
func (r *TimerRepository) ListTerminatedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("timer repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id
FROM timers
WHERE status IN ('ended', 'cancelled') AND updated_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a timer row.
func (r *TimerRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("timer repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM timers WHERE id = $1`, id)
	return err
}

type timerScanner interface {
	Scan(dest ...any) error
}

func scanTimer(row timerScanner) (*timers.Timer, error) {
	var timer timers.Timer
	var saleID sql.NullString
	var childName sql.NullString
	if err := row.Scan(
		&timer.ID,
		&timer.TenantID,
		&timer.LocationID,
		&saleID,
		&timer.ServiceID,
		&childName,
		&timer.DurationMinutes,
		&timer.StartDelayMinutes,
		&timer.ExtendedMinutesTotal,
		&timer.Status,
		&timer.ScheduledStartAt,
		&timer.EffectiveStartAt,
		&timer.EndAt,
		&timer.CreatedAt,
		&timer.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	timer.SaleID = saleID.String
	timer.ChildName = childName.String
	timer.ScheduledStartAt = timer.ScheduledStartAt.UTC()
	timer.EffectiveStartAt = timer.EffectiveStartAt.UTC()
	timer.EndAt = timer.EndAt.UTC()
	timer.CreatedAt = timer.CreatedAt.UTC()
	timer.UpdatedAt = timer.UpdatedAt.UTC()
	return &timer, nil
}

func collectTimers(rows *sql.Rows) ([]timers.Timer, error) {
	var result []timers.Timer
	for rows.Next() {
		timer, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *timer)
	}
	return result, rows.Err()
}

func rowsAffected(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
