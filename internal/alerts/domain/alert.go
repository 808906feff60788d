package alerts

import "time"

const (
	StatusPending      = "pending"
	StatusAcknowledged = "acknowledged"
	StatusFailed       = "failed"
)

// Alert records one threshold crossing for one timer. An alert is "live"
// while timer_end_at matches the owning timer's current end_at; extension
// replaces stale rows instead of mutating them.
type Alert struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	LocationID       string    `json:"location_id"`
	TimerID          string    `json:"timer_id"`
	ThresholdMinutes int       `json:"threshold_minutes"`
	TimerEndAt       time.Time `json:"timer_end_at"`
	TriggeredAt      time.Time `json:"triggered_at"`
	Status           string    `json:"status"`
	AckedAt          time.Time `json:"acked_at,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
