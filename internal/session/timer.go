// Package session implements the workout session timer state machine.
package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"example.com/fitlog/internal/domain"
)

// State enumerates the timer lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateArmed   State = "armed"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// TickInterval is the wall-clock period of one elapsed second.
const TickInterval = time.Second

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	State          State
	Workout        *domain.WorkoutDefinition
	ElapsedSeconds int
	Running        bool
	Paused         bool
}

// Ticker is the subset of *time.Ticker used by the timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func newStdTicker(d time.Duration) Ticker { return stdTicker{t: time.NewTicker(d)} }

// Option configures optional behaviour for the Timer.
type Option func(*Timer)

// WithTicker overrides the tick source.
func WithTicker(factory TickerFactory) Option {
	return func(t *Timer) {
		t.newTicker = factory
	}
}

// WithClock overrides the clock used to stamp finished sessions.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) {
		t.now = now
	}
}

// WithLogger overrides the logger used to report transitions.
func WithLogger(logger *log.Logger) Option {
	return func(t *Timer) {
		t.logger = logger
	}
}

// Timer tracks a single workout session. At most one tick goroutine exists at a time and
// ticks from a superseded run are discarded via the generation counter.
type Timer struct {
	catalog   *domain.Catalog
	newTicker TickerFactory
	now       func() time.Time
	logger    *log.Logger

	mu         sync.Mutex
	workout    *domain.WorkoutDefinition
	elapsed    int
	running    bool
	paused     bool
	generation uint64
	stop       chan struct{}
	subs       map[int]chan Snapshot
	nextSub    int
}

// New constructs an idle Timer over catalog.
func New(catalog *domain.Catalog, opts ...Option) *Timer {
	t := &Timer{
		catalog:   catalog,
		newTicker: newStdTicker,
		now:       time.Now,
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "session"}),
		subs:      make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Arm selects a workout and resets the session without starting the clock.
func (t *Timer) Arm(workoutID int) error {
	def, ok := t.catalog.Find(workoutID)
	if !ok {
		return fmt.Errorf("arm session: %w: id %d", domain.ErrWorkoutNotFound, workoutID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.workout = &def
	t.logger.Debug("session armed", "workout", def.Name)
	t.publishLocked()
	return nil
}

// Start selects a workout, discarding any session in progress, and begins ticking from zero.
func (t *Timer) Start(workoutID int) error {
	def, ok := t.catalog.Find(workoutID)
	if !ok {
		return fmt.Errorf("start session: %w: id %d", domain.ErrWorkoutNotFound, workoutID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.workout = &def
	t.running = true
	t.startTickingLocked()
	t.logger.Debug("session started", "workout", def.Name)
	t.publishLocked()
	return nil
}

// Pause stops the clock. Calling it when not running is a no-op.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.stopTickingLocked()
	t.running = false
	t.paused = true
	t.publishLocked()
}

// Resume restarts the clock of an armed or paused session.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.workout == nil || t.running {
		return
	}
	t.running = true
	t.paused = false
	t.startTickingLocked()
	t.publishLocked()
}

// Finish ends the session and returns the resulting log. A session without a workout or
// with zero elapsed seconds produces nothing. The timer is idle afterwards either way.
func (t *Timer) Finish(imageRef string) (domain.ActivityLog, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	workout, elapsed := t.workout, t.elapsed
	t.resetLocked()
	t.publishLocked()

	if workout == nil || elapsed == 0 {
		return domain.ActivityLog{}, false
	}
	entry := domain.NewActivityLog(*workout, elapsed, t.now(), imageRef)
	t.logger.Debug("session finished", "workout", entry.Workout, "seconds", elapsed)
	return entry, true
}

// Cancel discards the session unconditionally.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
	t.publishLocked()
}

// State returns the current snapshot.
func (t *Timer) State() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Subscribe returns a channel receiving snapshots after every change and a func that
// unsubscribes. A slow reader only ever sees the latest pending snapshot.
func (t *Timer) Subscribe() (<-chan Snapshot, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	ch := make(chan Snapshot, 1)
	t.subs[id] = ch
	ch <- t.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subs, id)
			close(ch)
		})
	}
}

func (t *Timer) resetLocked() {
	t.stopTickingLocked()
	t.workout = nil
	t.elapsed = 0
	t.running = false
	t.paused = false
}

func (t *Timer) startTickingLocked() {
	t.stopTickingLocked()
	stop := make(chan struct{})
	t.stop = stop
	go t.run(t.generation, t.newTicker(TickInterval), stop)
}

func (t *Timer) stopTickingLocked() {
	t.generation++
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Timer) run(generation uint64, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if !t.tick(generation) {
				return
			}
		}
	}
}

func (t *Timer) tick(generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if generation != t.generation || !t.running {
		return false
	}
	t.elapsed++
	t.publishLocked()
	return true
}

func (t *Timer) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:          StateIdle,
		ElapsedSeconds: t.elapsed,
		Running:        t.running,
		Paused:         t.paused,
	}
	if t.workout != nil {
		def := *t.workout
		snap.Workout = &def
		switch {
		case t.running:
			snap.State = StateRunning
		case t.paused:
			snap.State = StatePaused
		default:
			snap.State = StateArmed
		}
	}
	return snap
}

func (t *Timer) publishLocked() {
	if len(t.subs) == 0 {
		return
	}
	snap := t.snapshotLocked()
	for _, ch := range t.subs {
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
