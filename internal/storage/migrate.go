package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate ensures the schema exists. Statements are idempotent so the
// migrator can run on every startup against either driver.
func Migrate(db *sql.DB, driver string) error {
	if db == nil {
		return fmt.Errorf("migrate: db is nil")
	}

	ts := "TIMESTAMP"
	if driver == DriverPostgres {
		ts = "TIMESTAMPTZ"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS locations (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at {{TS}} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_tenant ON locations(tenant_id)`,

		`CREATE TABLE IF NOT EXISTS timers (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			location_id TEXT NOT NULL,
			sale_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			child_name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			start_delay_minutes INTEGER NOT NULL DEFAULT 0,
			extended_minutes_total INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			scheduled_start_at {{TS}} NOT NULL,
			effective_start_at {{TS}} NOT NULL,
			end_at {{TS}} NOT NULL,
			created_at {{TS}} NOT NULL,
			updated_at {{TS}} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timers_location_status ON timers(tenant_id, location_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_timers_status_end ON timers(status, end_at)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			location_id TEXT NOT NULL,
			timer_id TEXT NOT NULL,
			threshold_minutes INTEGER NOT NULL,
			timer_end_at {{TS}} NOT NULL,
			triggered_at {{TS}} NOT NULL,
			status TEXT NOT NULL,
			acked_at {{TS}} NULL,
			created_at {{TS}} NOT NULL,
			updated_at {{TS}} NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_alerts_timer_threshold_end
			ON alerts(timer_id, threshold_minutes, timer_end_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_location_pending ON alerts(tenant_id, location_id, status)`,

		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			role TEXT NOT NULL,
			action TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			location_id TEXT NOT NULL DEFAULT '',
			metadata TEXT NULL,
			payload_digest TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at {{TS}} NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant_created ON audit_logs(tenant_id, created_at)`,
	}

	for _, stmt := range statements {
		stmt = strings.ReplaceAll(stmt, "{{TS}}", ts)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
