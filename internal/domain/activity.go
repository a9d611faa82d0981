package domain

import (
	"time"
)

const (
	// DateLayout is the calendar-date format stored on every log.
	DateLayout = "2006-01-02"
	// TimeLayout is the wall-clock format stored on every log.
	TimeLayout = "15:04"
	// DefaultLogTime is used when a stored record has no time.
	DefaultLogTime = "00:00"
)

// ActivityLog is one completed workout session. Timestamp (ms since epoch) is its identity.
type ActivityLog struct {
	Date            string
	Time            string
	Workout         string
	DurationMinutes float64
	Calories        float64
	Timestamp       int64
	ImageRef        string
}

// NewActivityLog stamps a finished session at the supplied instant.
func NewActivityLog(def WorkoutDefinition, elapsedSeconds int, at time.Time, imageRef string) ActivityLog {
	minutes := float64(elapsedSeconds) / 60.0
	return ActivityLog{
		Date:            at.Format(DateLayout),
		Time:            at.Format(TimeLayout),
		Workout:         def.Name,
		DurationMinutes: minutes,
		Calories:        CalculateCalories(def.MET, minutes),
		Timestamp:       at.UnixMilli(),
		ImageRef:        imageRef,
	}
}

// StartedAt reconstructs the local instant from Date and Time.
func (l ActivityLog) StartedAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, l.Date+" "+l.Time, loc)
}

// DailyStats summarises today's activity.
type DailyStats struct {
	TotalDurationMinutes float64
	TotalCalories        float64
	Streak               int
}

// DailyProgressPoint is one day of the recent-progress chart.
type DailyProgressPoint struct {
	Label                string
	Date                 string
	TotalCalories        float64
	TotalDurationMinutes float64
}

// WorkoutSummary totals every log recorded for a workout name.
type WorkoutSummary struct {
	Workout              string
	Sessions             int
	TotalDurationMinutes float64
	TotalCalories        float64
}
