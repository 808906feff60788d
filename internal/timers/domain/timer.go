package timers

import "time"

const (
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusAlert     = "alert"
	StatusEnded     = "ended"
	StatusCancelled = "cancelled"
)

// Timer represents one rented play session.
type Timer struct {
	ID                   string    `json:"id"`
	TenantID             string    `json:"tenant_id"`
	LocationID           string    `json:"location_id"`
	SaleID               string    `json:"sale_id,omitempty"`
	ServiceID            string    `json:"service_id"`
	ChildName            string    `json:"child_name,omitempty"`
	DurationMinutes      int       `json:"duration_minutes"`
	StartDelayMinutes    int       `json:"start_delay_minutes,omitempty"`
	ExtendedMinutesTotal int       `json:"extended_minutes_total,omitempty"`
	Status               string    `json:"status"`
	ScheduledStartAt     time.Time `json:"scheduled_start_at"`
	EffectiveStartAt     time.Time `json:"effective_start_at"`
	EndAt                time.Time `json:"end_at"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Terminal reports whether the timer reached a final status.
func (t Timer) Terminal() bool {
	return t.Status == StatusEnded || t.Status == StatusCancelled
}

// Running reports whether the timer is counting down.
func (t Timer) Running() bool {
	return t.Status == StatusActive || t.Status == StatusAlert
}

// Remaining returns the time left until end_at. Negative once elapsed.
func (t Timer) Remaining(now time.Time) time.Duration {
	return t.EndAt.Sub(now)
}
