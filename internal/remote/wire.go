package remote

import "example.com/fitlog/internal/domain"

// wireLog mirrors a workout_logs row.
type wireLog struct {
	ID              string  `json:"id,omitempty"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Workout         string  `json:"workout"`
	DurationMinutes float64 `json:"duration_minutes"`
	Calories        float64 `json:"calories"`
	Timestamp       int64   `json:"timestamp"`
	ImageURI        *string `json:"image_uri,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// insertRequest is the create payload; id and created_at are assigned by the server.
type insertRequest struct {
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Workout         string  `json:"workout"`
	DurationMinutes float64 `json:"duration_minutes"`
	Calories        float64 `json:"calories"`
	Timestamp       int64   `json:"timestamp"`
	ImageURI        *string `json:"image_uri"`
}

func newInsertRequest(entry domain.ActivityLog) insertRequest {
	req := insertRequest{
		Date:            entry.Date,
		Time:            entry.Time,
		Workout:         entry.Workout,
		DurationMinutes: entry.DurationMinutes,
		Calories:        entry.Calories,
		Timestamp:       entry.Timestamp,
	}
	if entry.ImageRef != "" {
		image := entry.ImageRef
		req.ImageURI = &image
	}
	return req
}

func (w wireLog) toDomain() domain.ActivityLog {
	entry := domain.ActivityLog{
		Date:            w.Date,
		Time:            w.Time,
		Workout:         w.Workout,
		DurationMinutes: w.DurationMinutes,
		Calories:        w.Calories,
		Timestamp:       w.Timestamp,
	}
	if w.ImageURI != nil {
		entry.ImageRef = *w.ImageURI
	}
	return entry
}
