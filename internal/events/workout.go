// Package events defines the workout event payloads carried through the outbox and Kafka.
package events

import "time"

// Event types written to the outbox.
const (
	TypeWorkoutLogged  = "workout.logged"
	TypeWorkoutDeleted = "workout.deleted"
	TypeWorkoutCleared = "workout.cleared"
)

// DefaultTopic receives every workout event.
const DefaultTopic = "workout_events"

// Kafka headers attached to each published event.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
	HeaderOwnerID   = "owner_id"
)

// WorkoutLogged is emitted when a finished session is stored.
type WorkoutLogged struct {
	LogID           string    `json:"log_id"`
	OwnerID         string    `json:"owner_id"`
	Workout         string    `json:"workout"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes float64   `json:"duration_minutes"`
	Calories        float64   `json:"calories"`
	Timestamp       int64     `json:"timestamp"`
	ImageURI        string    `json:"image_uri,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// WorkoutDeleted is emitted when logs matching a timestamp are removed.
type WorkoutDeleted struct {
	OwnerID    string    `json:"owner_id"`
	Timestamp  int64     `json:"timestamp"`
	Removed    int64     `json:"removed"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WorkoutCleared is emitted when an owner's whole collection is removed.
type WorkoutCleared struct {
	OwnerID    string    `json:"owner_id"`
	Removed    int64     `json:"removed"`
	OccurredAt time.Time `json:"occurred_at"`
}
