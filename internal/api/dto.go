package api

import (
	"errors"
	"strings"
	"time"

	"example.com/fitlog/internal/domain"
)

// CreateLogRequest is the payload for POST /rest/v1/{table}.
type CreateLogRequest struct {
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Workout         string  `json:"workout"`
	DurationMinutes float64 `json:"duration_minutes"`
	Calories        float64 `json:"calories"`
	Timestamp       int64   `json:"timestamp"`
	ImageURI        *string `json:"image_uri"`
}

// Validate ensures request correctness.
func (r CreateLogRequest) Validate() error {
	if _, err := time.Parse(domain.DateLayout, r.Date); err != nil {
		return errors.New("date must be YYYY-MM-DD")
	}
	if _, err := time.Parse(domain.TimeLayout, r.Time); err != nil {
		return errors.New("time must be HH:mm")
	}
	if strings.TrimSpace(r.Workout) == "" {
		return errors.New("workout is required")
	}
	if r.DurationMinutes < 0 {
		return errors.New("duration_minutes must be >= 0")
	}
	if r.Calories < 0 {
		return errors.New("calories must be >= 0")
	}
	if r.Timestamp <= 0 {
		return errors.New("timestamp must be > 0")
	}
	return nil
}

func (r CreateLogRequest) toDomain() domain.ActivityLog {
	entry := domain.ActivityLog{
		Date:            r.Date,
		Time:            r.Time,
		Workout:         strings.TrimSpace(r.Workout),
		DurationMinutes: r.DurationMinutes,
		Calories:        r.Calories,
		Timestamp:       r.Timestamp,
	}
	if r.ImageURI != nil {
		entry.ImageRef = *r.ImageURI
	}
	return entry
}

// LogView is one row of the collection.
type LogView struct {
	ID              string    `json:"id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	Workout         string    `json:"workout"`
	DurationMinutes float64   `json:"duration_minutes"`
	Calories        float64   `json:"calories"`
	Timestamp       int64     `json:"timestamp"`
	ImageURI        *string   `json:"image_uri"`
	CreatedAt       time.Time `json:"created_at"`
}

// UploadResponse mirrors the storage API's upload acknowledgement.
type UploadResponse struct {
	Key       string `json:"Key"`
	PublicURL string `json:"publicUrl,omitempty"`
}

func toLogView(s domain.StoredLog) LogView {
	view := LogView{
		ID:              s.ID,
		Date:            s.Log.Date,
		Time:            s.Log.Time,
		Workout:         s.Log.Workout,
		DurationMinutes: s.Log.DurationMinutes,
		Calories:        s.Log.Calories,
		Timestamp:       s.Log.Timestamp,
		CreatedAt:       s.CreatedAt,
	}
	if s.Log.ImageRef != "" {
		image := s.Log.ImageRef
		view.ImageURI = &image
	}
	return view
}
