package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	logPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitlog",
		Subsystem: "persistence",
		Name:      "last_log_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity log persisted to Postgres.",
	})
	eventRecordedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitlog",
		Subsystem: "persistence",
		Name:      "last_event_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout event written to the event log.",
	})
)

func init() {
	prometheus.MustRegister(logPersistGauge, eventRecordedGauge)
}

// RecordLogPersisted updates the persistence watermark gauge.
func RecordLogPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	logPersistGauge.Set(float64(ts.Unix()))
}

// RecordEventRecorded updates the event log watermark gauge.
func RecordEventRecorded(ts time.Time) {
	if ts.IsZero() {
		return
	}
	eventRecordedGauge.Set(float64(ts.Unix()))
}
