package masterdata

import (
	"context"
	"time"
)

// Location is one venue floor served by a set of viewer displays.
type Location struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// LocationRepository persists locations.
type LocationRepository interface {
	Get(ctx context.Context, id string) (*Location, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Location, error)
	Create(ctx context.Context, location *Location) error
}
