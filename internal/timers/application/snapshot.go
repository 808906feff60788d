package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"playtrack/internal/auth"
	"playtrack/internal/observability/metrics"
	timers "playtrack/internal/timers/domain"
)

// Snapshot is a versioned view of the active timer set for a location.
type Snapshot struct {
	Timers      []timers.Timer `json:"timers"`
	Fingerprint string         `json:"fingerprint"`
}

// SnapshotService produces conditional snapshots of active timers. The
// fingerprint covers the count and the latest updated_at of the non-terminal
// set, so a caller presenting an up-to-date fingerprint skips the full read
// and serialization.
type SnapshotService struct {
	repo     timers.Repository
	tenantID string
}

// NewSnapshotService constructs a snapshot service.
func NewSnapshotService(repo timers.Repository, tenantID string) (*SnapshotService, error) {
	if repo == nil {
		return nil, errors.New("snapshot: nil repository")
	}
	if tenantID == "" {
		return nil, errors.New("snapshot: empty tenant id")
	}
	return &SnapshotService{repo: repo, tenantID: tenantID}, nil
}

// Get returns the snapshot for a location, or unchanged=true when the
// caller's fingerprint still matches.
func (s *SnapshotService) Get(ctx context.Context, locationID, knownFingerprint string) (*Snapshot, bool, error) {
	if s == nil {
		return nil, false, errors.New("snapshot: nil service")
	}
	if locationID == "" {
		return nil, false, errors.New("snapshot: location id required")
	}
	tenantID := s.tenant(ctx)
	count, latest, err := s.repo.ActiveFingerprint(ctx, tenantID, locationID)
	if err != nil {
		return nil, false, err
	}
	fingerprint := buildFingerprint(tenantID, locationID, count, latest)
	if knownFingerprint != "" && knownFingerprint == fingerprint {
		metrics.IncSnapshotRequest("unchanged")
		return &Snapshot{Fingerprint: fingerprint}, true, nil
	}

	list, err := s.repo.ListActiveByLocation(ctx, tenantID, locationID)
	if err != nil {
		return nil, false, err
	}
	metrics.IncSnapshotRequest("changed")
	return &Snapshot{Timers: list, Fingerprint: fingerprint}, false, nil
}

func (s *SnapshotService) tenant(ctx context.Context) string {
	if tenantID := auth.TenantIDFromContext(ctx); tenantID != "" {
		return tenantID
	}
	return s.tenantID
}

func buildFingerprint(tenantID, locationID string, count int, latest time.Time) string {
	seed := fmt.Sprintf("%s|%s|%d|%s", tenantID, locationID, count, latest.UTC().Format(time.RFC3339Nano))
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])
}
