// Package tracker owns the workout session, the log collection and the statistics derived
// from them, and publishes a consistent snapshot to observers after every change.
package tracker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/logsync"
	"example.com/fitlog/internal/session"
)

// Repository persists logs, remote first with local fallback.
type Repository interface {
	Load(ctx context.Context) (logsync.Result, error)
	Add(ctx context.Context, entry domain.ActivityLog) (logsync.Result, error)
	Delete(ctx context.Context, entry domain.ActivityLog) (logsync.Result, error)
	Clear(ctx context.Context) (logsync.Result, error)
}

// Snapshot is everything a presentation layer renders.
type Snapshot struct {
	Session  session.Snapshot
	Logs     []domain.ActivityLog
	Today    domain.DailyStats
	Progress []domain.DailyProgressPoint
	Loading  bool
	Synced   bool
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the clock used for statistics.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithImageUploader enables uploading session photos.
func WithImageUploader(uploader ImageUploader) Option {
	return func(s *Service) {
		s.uploader = uploader
	}
}

// WithProgressDays overrides the length of the progress window.
func WithProgressDays(days int) Option {
	return func(s *Service) {
		s.progressDays = days
	}
}

// Service is the single owner of session and log state.
type Service struct {
	catalog      *domain.Catalog
	timer        *session.Timer
	repo         Repository
	uploader     ImageUploader
	now          func() time.Time
	logger       *log.Logger
	progressDays int

	mu      sync.Mutex
	logs    []domain.ActivityLog
	version uint64
	loading int
	synced  bool
	subs    map[int]chan Snapshot
	nextSub int

	stopWatch func()
	watchDone chan struct{}
}

// New constructs a Service and starts forwarding timer updates to subscribers.
func New(catalog *domain.Catalog, timer *session.Timer, repo Repository, opts ...Option) *Service {
	s := &Service{
		catalog:      catalog,
		timer:        timer,
		repo:         repo,
		now:          time.Now,
		logger:       log.NewWithOptions(os.Stderr, log.Options{Prefix: "tracker"}),
		progressDays: domain.DefaultProgressDays,
		logs:         []domain.ActivityLog{},
		subs:         make(map[int]chan Snapshot),
		watchDone:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	updates, stop := timer.Subscribe()
	s.stopWatch = stop
	go func() {
		defer close(s.watchDone)
		for range updates {
			s.publish()
		}
	}()
	return s
}

// Close cancels the session and stops forwarding timer updates.
func (s *Service) Close() {
	s.timer.Cancel()
	s.stopWatch()
	<-s.watchDone
}

// Workouts returns the catalog in display order.
func (s *Service) Workouts() []domain.WorkoutDefinition {
	return s.catalog.All()
}

// Workout looks up a single definition.
func (s *Service) Workout(id int) (domain.WorkoutDefinition, bool) {
	return s.catalog.Find(id)
}

// Refresh reloads the collection through the repository.
func (s *Service) Refresh(ctx context.Context) error {
	s.beginLoading()
	result, err := s.repo.Load(ctx)
	s.endLoading(result, err)
	if err != nil {
		return fmt.Errorf("refresh logs: %w", err)
	}
	s.logger.Debug("logs refreshed", "count", len(result.Logs), "synced", result.Synced)
	return nil
}

// ArmSession selects a workout without starting the clock.
func (s *Service) ArmSession(workoutID int) error {
	return s.timer.Arm(workoutID)
}

// StartSession selects a workout and starts the clock.
func (s *Service) StartSession(workoutID int) error {
	return s.timer.Start(workoutID)
}

// PauseSession pauses the clock.
func (s *Service) PauseSession() {
	s.timer.Pause()
}

// ResumeSession resumes the clock.
func (s *Service) ResumeSession() {
	s.timer.Resume()
}

// CancelSession discards the session.
func (s *Service) CancelSession() {
	s.timer.Cancel()
}

// FinishSession ends the session and persists the resulting log. It returns nil when the
// session produced nothing. The error is non-nil only if the log could not be stored at all.
func (s *Service) FinishSession(ctx context.Context, imageRef string) (*domain.ActivityLog, error) {
	entry, ok := s.timer.Finish(imageRef)
	if !ok {
		return nil, nil
	}

	s.beginLoading()
	result, err := s.repo.Add(ctx, entry)
	s.endLoading(result, err)
	if err != nil {
		return &entry, fmt.Errorf("store finished session: %w", err)
	}
	s.logger.Info("session logged", "workout", entry.Workout, "minutes", entry.DurationMinutes, "synced", result.Synced)
	return &entry, nil
}

// DeleteLog removes the log with entry's timestamp.
func (s *Service) DeleteLog(ctx context.Context, entry domain.ActivityLog) error {
	s.beginLoading()
	result, err := s.repo.Delete(ctx, entry)
	s.endLoading(result, err)
	if err != nil {
		return fmt.Errorf("delete log: %w", err)
	}
	return nil
}

// ClearLogs removes every log.
func (s *Service) ClearLogs(ctx context.Context) error {
	s.beginLoading()
	result, err := s.repo.Clear(ctx)
	s.endLoading(result, err)
	if err != nil {
		return fmt.Errorf("clear logs: %w", err)
	}
	return nil
}

// Snapshot returns the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of snapshots and a func that unsubscribes. A slow reader
// only sees the latest pending snapshot.
func (s *Service) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Service) beginLoading() {
	s.mu.Lock()
	s.loading++
	s.publishLocked()
	s.mu.Unlock()
}

func (s *Service) endLoading(result logsync.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	// A result older than the one already applied is stale.
	if err == nil && result.Version >= s.version {
		s.version = result.Version
		logs := make([]domain.ActivityLog, len(result.Logs))
		copy(logs, result.Logs)
		domain.SortNewestFirst(logs)
		s.logs = logs
		s.synced = result.Synced
	}
	s.publishLocked()
}

func (s *Service) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked()
}

func (s *Service) snapshotLocked() Snapshot {
	now := s.now()
	logs := make([]domain.ActivityLog, len(s.logs))
	copy(logs, s.logs)
	return Snapshot{
		Session:  s.timer.State(),
		Logs:     logs,
		Today:    domain.TodayStats(s.logs, now),
		Progress: domain.RecentProgress(s.logs, now, s.progressDays),
		Loading:  s.loading > 0,
		Synced:   s.synced,
	}
}

func (s *Service) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
