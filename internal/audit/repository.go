package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const insertEntrySQL = `
INSERT INTO audit_logs (
	id, created_at, tenant_id, location_id, actor, role, action,
	resource_type, resource_id, metadata, payload_digest, ip, user_agent
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// Repository persists audit entries.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Log writes an audit entry, filling id, timestamp and digest defaults.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry.normalize()
	_, err := r.db.ExecContext(ctx, insertEntrySQL,
		entry.ID, entry.CreatedAt, entry.TenantID, entry.LocationID,
		entry.Actor, entry.Role, entry.Action,
		entry.ResourceType, entry.ResourceID,
		entry.Metadata, entry.PayloadDigest, entry.IP, entry.UserAgent)
	return err
}

func (e *Entry) normalize() {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.PayloadDigest == "" {
		e.PayloadDigest = DigestJSON(e.Metadata)
	}
}
