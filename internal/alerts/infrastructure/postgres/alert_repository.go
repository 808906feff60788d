package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	alerts "playtrack/internal/alerts/domain"
)

// AlertRepository is a SQL repository for alerts. Statements use $N
// placeholders, accepted by both the pgx and sqlite drivers.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, tenant_id, location_id, timer_id, threshold_minutes,
	timer_end_at, triggered_at, status, acked_at, created_at, updated_at`

// Create inserts a new alert. The unique index on
// (timer_id, threshold_minutes, timer_end_at) makes creation exactly-once
// even under concurrent sweeps; a conflicting insert reports false.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("alert repo: nil db")
	}
	if alert == nil {
		return false, errors.New("alert repo: nil alert")
	}
	if alert.ID == "" || alert.TenantID == "" || alert.TimerID == "" || alert.LocationID == "" {
		return false, errors.New("alert repo: missing fields")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	result, err := r.db.ExecContext(ctx, `
INSERT INTO alerts (
	id, tenant_id, location_id, timer_id, threshold_minutes,
	timer_end_at, triggered_at, status, acked_at, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8, $9, $10, $11
)
ON CONFLICT (timer_id, threshold_minutes, timer_end_at) DO NOTHING`,
		alert.ID,
		alert.TenantID,
		alert.LocationID,
		alert.TimerID,
		alert.ThresholdMinutes,
		alert.TimerEndAt,
		alert.TriggeredAt,
		alert.Status,
		nullableTime(alert.AckedAt),
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetByID fetches an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE id = $1`, id)
	return scanAlert(row)
}

// FindLive returns the alert created for the given end_at, if any.
func (r *AlertRepository) FindLive(ctx context.Context, timerID string, thresholdMinutes int, timerEndAt time.Time) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE timer_id = $1 AND threshold_minutes = $2 AND timer_end_at = $3
LIMIT 1`, timerID, thresholdMinutes, timerEndAt)
	return scanAlert(row)
}

// ListPendingByLocation returns pending alerts ordered by triggered_at.
func (r *AlertRepository) ListPendingByLocation(ctx context.Context, tenantID, locationID string) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if tenantID == "" || locationID == "" {
		return nil, errors.New("alert repo: invalid query")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE tenant_id = $1 AND location_id = $2 AND status = 'pending'
ORDER BY triggered_at ASC, id ASC`, tenantID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	return result, rows.Err()
}

// MarkAcknowledged marks an alert as acknowledged.
func (r *AlertRepository) MarkAcknowledged(ctx context.Context, id string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET status = $1, acked_at = $2, updated_at = $3
WHERE id = $4`, alerts.StatusAcknowledged, at, at, id)
	return err
}

// MarkFailedByTimer fails all still-pending alerts of a timer.
func (r *AlertRepository) MarkFailedByTimer(ctx context.Context, timerID string, at time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET status = $1, updated_at = $2
WHERE timer_id = $3 AND status = 'pending'`, alerts.StatusFailed, at, timerID)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// DeleteStale removes alerts created for any end_at other than the given one.
func (r *AlertRepository) DeleteStale(ctx context.Context, timerID string, timerEndAt time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
DELETE FROM alerts
WHERE timer_id = $1 AND timer_end_at <> $2`, timerID, timerEndAt)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// DeleteByTimer removes all alerts of a timer.
func (r *AlertRepository) DeleteByTimer(ctx context.Context, timerID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
DELETE FROM alerts
WHERE timer_id = $1`, timerID)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var ackedAt sql.NullTime
	if err := row.Scan(
		&alert.ID,
		&alert.TenantID,
		&alert.LocationID,
		&alert.TimerID,
		&alert.ThresholdMinutes,
		&alert.TimerEndAt,
		&alert.TriggeredAt,
		&alert.Status,
		&ackedAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alert.TimerEndAt = alert.TimerEndAt.UTC()
	alert.TriggeredAt = alert.TriggeredAt.UTC()
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.UpdatedAt.UTC()
	if ackedAt.Valid {
		alert.AckedAt = ackedAt.Time.UTC()
	}
	return &alert, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}
