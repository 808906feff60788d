package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

// Gauges computed against the store on every scrape.
var dbGauges = []struct {
	name  string
	help  string
	query string
}{
	{
		name:  "timers_running",
		help:  "Timers currently in a running state",
		query: "SELECT COUNT(*) FROM timers WHERE status IN ('active', 'alert')",
	},
	{
		name:  "alerts_pending",
		help:  "Alerts awaiting acknowledgement",
		query: "SELECT COUNT(*) FROM alerts WHERE status = 'pending'",
	},
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	for _, gauge := range dbGauges {
		query := gauge.query
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + gauge.name,
				Help: gauge.help,
			},
			func() float64 {
				return queryCount(db, logger, query)
			},
		))
	}
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	return float64(max(count, 0))
}
