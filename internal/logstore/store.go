// Package logstore keeps the activity log collection in a local key-value store.
package logstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/kv"
)

const (
	// Namespace groups the workout preferences in the key-value store.
	Namespace = "workout_prefs"
	// Key holds the serialized log collection.
	Key = "workoutLogs"
)

// record is the persisted shape of one log. Optional fields are pointers so missing
// values can be told apart from zero values.
type record struct {
	Date      *string `json:"date"`
	Time      *string `json:"time"`
	Workout   string  `json:"workout"`
	Duration  float64 `json:"duration"`
	Calories  float64 `json:"calories"`
	Timestamp *int64  `json:"timestamp"`
	ImageURI  *string `json:"imageUri,omitempty"`
}

// Option configures optional behaviour for the Store.
type Option func(*Store)

// WithClock overrides the clock used to default missing dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger overrides the logger used to report unreadable collections.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store persists the whole log collection under a single key. Every mutation is a
// load-modify-save cycle serialized by mu.
type Store struct {
	kv     kv.Store
	now    func() time.Time
	logger *log.Logger

	mu sync.Mutex
}

// New constructs a Store over backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     backend,
		now:    time.Now,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "logstore"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the stored logs. Missing or unreadable collections load as empty.
func (s *Store) Load(ctx context.Context) ([]domain.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Save replaces the stored collection.
func (s *Store) Save(ctx context.Context, logs []domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, logs)
}

// Add appends entry and returns the updated collection.
func (s *Store) Add(ctx context.Context, entry domain.ActivityLog) ([]domain.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	logs = append(logs, entry)
	if err := s.saveLocked(ctx, logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// Delete removes every log sharing entry's timestamp and returns the updated collection.
func (s *Store) Delete(ctx context.Context, entry domain.ActivityLog) ([]domain.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	kept := logs[:0]
	for _, existing := range logs {
		if existing.Timestamp != entry.Timestamp {
			kept = append(kept, existing)
		}
	}
	if err := s.saveLocked(ctx, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// Clear removes every log.
func (s *Store) Clear(ctx context.Context) ([]domain.ActivityLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveLocked(ctx, nil); err != nil {
		return nil, err
	}
	return []domain.ActivityLog{}, nil
}

func (s *Store) loadLocked(ctx context.Context) ([]domain.ActivityLog, error) {
	raw, ok, err := s.kv.Get(ctx, Namespace, Key)
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []domain.ActivityLog{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn("discarding unreadable log collection", "err", err)
		return []domain.ActivityLog{}, nil
	}

	now := s.now()
	logs := make([]domain.ActivityLog, 0, len(items))
	for i, item := range items {
		rec, ok := decodeRecord(item)
		if !ok {
			s.logger.Warn("skipping unreadable log record", "index", i)
			continue
		}
		logs = append(logs, rec.toDomain(now))
	}
	return logs, nil
}

// decodeRecord reads one stored log field by field. A field of the wrong type is treated
// as missing, so one bad value never costs the rest of the record or its neighbours.
func decodeRecord(item json.RawMessage) (record, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return record{}, false
	}
	rec := record{
		Date:      optString(fields, "date"),
		Time:      optString(fields, "time"),
		Duration:  optFloat(fields, "duration"),
		Calories:  optFloat(fields, "calories"),
		Timestamp: optInt64(fields, "timestamp"),
		ImageURI:  optString(fields, "imageUri"),
	}
	if workout := optString(fields, "workout"); workout != nil {
		rec.Workout = *workout
	}
	return rec, true
}

func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func optString(fields map[string]json.RawMessage, key string) *string {
	raw, ok := present(fields, key)
	if !ok {
		return nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func optNumber(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := present(fields, key)
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func optFloat(fields map[string]json.RawMessage, key string) float64 {
	v, _ := optNumber(fields, key)
	return v
}

func optInt64(fields map[string]json.RawMessage, key string) *int64 {
	if raw, ok := present(fields, key); ok {
		var n int64
		if err := json.Unmarshal(raw, &n); err == nil {
			return &n
		}
	}
	v, ok := optNumber(fields, key)
	if !ok || v < math.MinInt64 || v >= math.MaxInt64 {
		return nil
	}
	ts := int64(v)
	return &ts
}

func (s *Store) saveLocked(ctx context.Context, logs []domain.ActivityLog) error {
	records := make([]record, 0, len(logs))
	for _, entry := range logs {
		records = append(records, fromDomain(entry))
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}
	if err := s.kv.Put(ctx, Namespace, Key, raw); err != nil {
		return fmt.Errorf("save logs: %w", err)
	}
	return nil
}

func (r record) toDomain(now time.Time) domain.ActivityLog {
	entry := domain.ActivityLog{
		Date:            now.Format(domain.DateLayout),
		Time:            domain.DefaultLogTime,
		Workout:         r.Workout,
		DurationMinutes: r.Duration,
		Calories:        r.Calories,
	}
	if r.Date != nil && *r.Date != "" {
		entry.Date = *r.Date
	}
	if r.Time != nil && *r.Time != "" {
		entry.Time = *r.Time
	}
	if r.ImageURI != nil {
		entry.ImageRef = *r.ImageURI
	}

	if r.Timestamp != nil {
		entry.Timestamp = *r.Timestamp
		return entry
	}
	// Older records have no timestamp: derive it from date and time, or 0 so they sort last.
	if at, err := entry.StartedAt(now.Location()); err == nil {
		entry.Timestamp = at.UnixMilli()
	}
	return entry
}

func fromDomain(entry domain.ActivityLog) record {
	date, clock, ts := entry.Date, entry.Time, entry.Timestamp
	rec := record{
		Date:      &date,
		Time:      &clock,
		Workout:   entry.Workout,
		Duration:  entry.DurationMinutes,
		Calories:  entry.Calories,
		Timestamp: &ts,
	}
	if entry.ImageRef != "" {
		image := entry.ImageRef
		rec.ImageURI = &image
	}
	return rec
}
