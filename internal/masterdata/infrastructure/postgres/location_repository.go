package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	masterdata "playtrack/internal/masterdata/domain"
)

// LocationRepository is a SQL repository for locations.
type LocationRepository struct {
	db *sql.DB
}

// NewLocationRepository constructs a repository.
func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// Get fetches a location by id.
func (r *LocationRepository) Get(ctx context.Context, id string) (*masterdata.Location, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, name, created_at
FROM locations
WHERE id = $1`, id)
	var location masterdata.Location
	if err := row.Scan(&location.ID, &location.TenantID, &location.Name, &location.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	location.CreatedAt = location.CreatedAt.UTC()
	return &location, nil
}

// ListByTenant returns a tenant's locations.
func (r *LocationRepository) ListByTenant(ctx context.Context, tenantID string) ([]masterdata.Location, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("location repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, name, created_at
FROM locations
WHERE tenant_id = $1
ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Location
	for rows.Next() {
		var location masterdata.Location
		if err := rows.Scan(&location.ID, &location.TenantID, &location.Name, &location.CreatedAt); err != nil {
			return nil, err
		}
		location.CreatedAt = location.CreatedAt.UTC()
		result = append(result, location)
	}
	return result, rows.Err()
}

// Create inserts a new location.
func (r *LocationRepository) Create(ctx context.Context, location *masterdata.Location) error {
	if r == nil || r.db == nil {
		return errors.New("location repo: nil db")
	}
	if location == nil || location.ID == "" || location.TenantID == "" {
		return errors.New("location repo: missing fields")
	}
	if location.CreatedAt.IsZero() {
		location.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO locations (id, tenant_id, name, created_at)
VALUES ($1, $2, $3, $4)`,
		location.ID, location.TenantID, location.Name, location.CreatedAt)
	return err
}
