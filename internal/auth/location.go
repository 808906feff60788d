package auth

import (
	"context"
	"database/sql"
	"errors"

	masterdata "playtrack/internal/masterdata/domain"
	masterdatarepo "playtrack/internal/masterdata/infrastructure/postgres"
)

var (
	// ErrTenantMismatch indicates the resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = errors.New("resource not found")
)

// LocationTenantChecker validates location tenant ownership.
type LocationTenantChecker interface {
	EnsureLocationTenant(ctx context.Context, tenantID, locationID string) error
}

// LocationChecker resolves locations through masterdata to verify ownership.
type LocationChecker struct {
	locations masterdata.LocationRepository
}

// NewLocationChecker constructs a LocationChecker over the masterdata store.
func NewLocationChecker(db *sql.DB) *LocationChecker {
	if db == nil {
		return nil
	}
	return &LocationChecker{locations: masterdatarepo.NewLocationRepository(db)}
}

// EnsureLocationTenant verifies the location exists and belongs to the
// tenant. Empty ids pass through; handlers validate presence themselves.
func (c *LocationChecker) EnsureLocationTenant(ctx context.Context, tenantID, locationID string) error {
	if c == nil || c.locations == nil || tenantID == "" || locationID == "" {
		return nil
	}
	location, err := c.locations.Get(ctx, locationID)
	switch {
	case err != nil:
		return err
	case location == nil:
		return ErrNotFound
	case location.TenantID != tenantID:
		return ErrTenantMismatch
	}
	return nil
}
