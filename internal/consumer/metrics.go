package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeStored = "stored"
	outcomeFailed = "failed"
)

var (
	workoutEventsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "event_log",
		Name:      "workout_events_total",
		Help:      "Workout events read from Kafka, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	poisonCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "event_log",
		Name:      "poison_messages_total",
		Help:      "Records committed without handling because their headers or payload were unusable.",
	}, []string{"topic"})

	duplicateCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "event_log",
		Name:      "duplicate_events_total",
		Help:      "Redelivered workout events that were already in the event log.",
	}, []string{"event_type"})

	deliveryLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitlog",
		Subsystem: "event_log",
		Name:      "delivery_lag_seconds",
		Help:      "Delay between a workout event being published and being handled.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(workoutEventsCounter, poisonCounter, duplicateCounter, deliveryLag)
}

func recordProcessed(msg Message, now time.Time) {
	workoutEventsCounter.WithLabelValues(msg.EventType, outcomeStored).Inc()
	if msg.Timestamp.IsZero() {
		return
	}
	if lag := now.Sub(msg.Timestamp); lag > 0 {
		deliveryLag.Observe(lag.Seconds())
	}
}

func recordHandlerError(msg Message) {
	workoutEventsCounter.WithLabelValues(msg.EventType, outcomeFailed).Inc()
}

func recordDecodeError(topic string) {
	poisonCounter.WithLabelValues(topic).Inc()
}

func recordDuplicate(msg Message) {
	duplicateCounter.WithLabelValues(msg.EventType).Inc()
}
