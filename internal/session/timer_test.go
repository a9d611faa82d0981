package session

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"example.com/fitlog/internal/domain"
)

func TestStartUnknownWorkoutLeavesTimerUntouched(t *testing.T) {
	timer, _ := newTestTimer(t)
	require.NoError(t, timer.Arm(1))

	err := timer.Start(42)
	require.ErrorIs(t, err, domain.ErrWorkoutNotFound)

	snap := timer.State()
	require.Equal(t, StateArmed, snap.State)
	require.Equal(t, "Yoga", snap.Workout.Name)
}

func TestTicksAdvanceElapsedWhileRunning(t *testing.T) {
	timer, ticks := newTestTimer(t)
	require.NoError(t, timer.Start(2))

	ticker := ticks.latest(t)
	ticker.fire(t)
	ticker.fire(t)
	ticker.fire(t)

	require.Eventually(t, func() bool { return timer.State().ElapsedSeconds == 3 }, time.Second, time.Millisecond)
	snap := timer.State()
	require.Equal(t, StateRunning, snap.State)
	require.True(t, snap.Running)
	require.False(t, snap.Paused)
}

func TestPauseStopsTicksAndResumeContinues(t *testing.T) {
	timer, ticks := newTestTimer(t)
	require.NoError(t, timer.Start(2))

	first := ticks.latest(t)
	first.fire(t)
	require.Eventually(t, func() bool { return timer.State().ElapsedSeconds == 1 }, time.Second, time.Millisecond)

	timer.Pause()
	timer.Pause()
	snap := timer.State()
	require.Equal(t, StatePaused, snap.State)
	require.True(t, snap.Paused)
	require.False(t, snap.Running)

	first.tryFire()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, timer.State().ElapsedSeconds)
	require.Eventually(t, first.isStopped, time.Second, time.Millisecond)

	timer.Resume()
	second := ticks.latest(t)
	require.NotSame(t, first, second)
	second.fire(t)
	require.Eventually(t, func() bool { return timer.State().ElapsedSeconds == 2 }, time.Second, time.Millisecond)
}

func TestResumeWithoutWorkoutIsNoop(t *testing.T) {
	timer, ticks := newTestTimer(t)
	timer.Resume()

	require.Equal(t, StateIdle, timer.State().State)
	require.Equal(t, 0, ticks.count())
}

func TestResumeFromArmedStartsClock(t *testing.T) {
	timer, ticks := newTestTimer(t)
	require.NoError(t, timer.Arm(5))
	require.Equal(t, 0, ticks.count())

	timer.Resume()
	require.Equal(t, StateRunning, timer.State().State)
	require.Equal(t, 1, ticks.count())
}

func TestFinishProducesLog(t *testing.T) {
	timer, ticks := newTestTimer(t)
	require.NoError(t, timer.Start(2))

	ticker := ticks.latest(t)
	for i := 0; i < 3; i++ {
		ticker.fire(t)
	}
	require.Eventually(t, func() bool { return timer.State().ElapsedSeconds == 3 }, time.Second, time.Millisecond)

	entry, ok := timer.Finish("content://photo/1")
	require.True(t, ok)
	require.Equal(t, "Running", entry.Workout)
	require.InDelta(t, 0.05, entry.DurationMinutes, 1e-9)
	require.InDelta(t, domain.CalculateCalories(8.0, 0.05), entry.Calories, 1e-9)
	require.Equal(t, "2025-03-05", entry.Date)
	require.Equal(t, "08:30", entry.Time)
	require.Equal(t, testNow.UnixMilli(), entry.Timestamp)
	require.Equal(t, "content://photo/1", entry.ImageRef)

	snap := timer.State()
	require.Equal(t, StateIdle, snap.State)
	require.Nil(t, snap.Workout)
	require.Zero(t, snap.ElapsedSeconds)
}

func TestFinishWithZeroElapsedProducesNothing(t *testing.T) {
	timer, _ := newTestTimer(t)
	require.NoError(t, timer.Start(1))

	_, ok := timer.Finish("")
	require.False(t, ok)
	require.Equal(t, StateIdle, timer.State().State)

	_, ok = timer.Finish("")
	require.False(t, ok)
}

func TestNoTicksObservedAfterFinish(t *testing.T) {
	timer, ticks := newTestTimer(t)
	require.NoError(t, timer.Start(3))
	ticker := ticks.latest(t)
	ticker.fire(t)
	require.Eventually(t, func() bool { return timer.State().ElapsedSeconds == 1 }, time.Second, time.Millisecond)

	_, ok := timer.Finish("")
	require.True(t, ok)

	ticker.tryFire()
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, timer.State().ElapsedSeconds)
	require.Equal(t, StateIdle, timer.State().State)
}

func TestStartDiscardsSessionInProgress(t *testing.T) {
	timer, ticks := newTestTimer(t)
	require.NoError(t, timer.Start(1))
	first := ticks.latest(t)
	first.fire(t)
	require.Eventually(t, func() bool { return timer.State().ElapsedSeconds == 1 }, time.Second, time.Millisecond)

	require.NoError(t, timer.Start(4))
	snap := timer.State()
	require.Equal(t, "HIIT", snap.Workout.Name)
	require.Zero(t, snap.ElapsedSeconds)
	require.Eventually(t, first.isStopped, time.Second, time.Millisecond)
}

func TestCancelResets(t *testing.T) {
	timer, ticks := newTestTimer(t)
	require.NoError(t, timer.Start(6))
	ticks.latest(t).fire(t)

	timer.Cancel()
	snap := timer.State()
	require.Equal(t, StateIdle, snap.State)
	require.Nil(t, snap.Workout)
	require.Zero(t, snap.ElapsedSeconds)
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	timer, ticks := newTestTimer(t)
	updates, unsubscribe := timer.Subscribe()
	defer unsubscribe()

	initial := <-updates
	require.Equal(t, StateIdle, initial.State)

	require.NoError(t, timer.Start(2))
	ticker := ticks.latest(t)
	ticker.fire(t)
	ticker.fire(t)
	require.Eventually(t, func() bool { return timer.State().ElapsedSeconds == 2 }, time.Second, time.Millisecond)

	latest := <-updates
	require.Equal(t, StateRunning, latest.State)
	require.Equal(t, 2, latest.ElapsedSeconds)

	unsubscribe()
	_, open := <-updates
	require.False(t, open)
}

var testNow = time.Date(2025, time.March, 5, 8, 30, 0, 0, time.UTC)

func newTestTimer(t *testing.T) (*Timer, *fakeTickers) {
	t.Helper()
	ticks := &fakeTickers{}
	timer := New(domain.DefaultCatalog(),
		WithTicker(ticks.factory),
		WithClock(func() time.Time { return testNow }),
		WithLogger(log.New(io.Discard)),
	)
	t.Cleanup(timer.Cancel)
	return timer, ticks
}

type fakeTickers struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *fakeTickers) factory(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticker := &fakeTicker{ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, ticker)
	return ticker
}

func (f *fakeTickers) latest(t *testing.T) *fakeTicker {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.tickers)
	return f.tickers[len(f.tickers)-1]
}

func (f *fakeTickers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// fire delivers one tick and waits for the run loop to take it.
func (f *fakeTicker) fire(t *testing.T) {
	t.Helper()
	select {
	case f.ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("tick not consumed")
	}
	require.Eventually(t, func() bool { return len(f.ch) == 0 }, time.Second, time.Millisecond)
}

func (f *fakeTicker) tryFire() {
	select {
	case f.ch <- time.Now():
	default:
	}
}
