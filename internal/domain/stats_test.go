package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculateCalories(t *testing.T) {
	require.InDelta(t, 98.0, CalculateCalories(8.0, 10), 1e-9)
	require.InDelta(t, 36.75, CalculateCalories(3.0, 10), 1e-9)
	require.Zero(t, CalculateCalories(6.0, 0))
}

func TestNewActivityLogStampsSession(t *testing.T) {
	at := time.Date(2025, time.March, 4, 7, 5, 30, 0, time.UTC)
	running, ok := DefaultCatalog().Find(2)
	require.True(t, ok)

	log := NewActivityLog(running, 600, at, "file:///tmp/p.jpg")

	require.Equal(t, "2025-03-04", log.Date)
	require.Equal(t, "07:05", log.Time)
	require.Equal(t, "Running", log.Workout)
	require.InDelta(t, 10.0, log.DurationMinutes, 1e-9)
	require.InDelta(t, 98.0, log.Calories, 1e-9)
	require.Equal(t, at.UnixMilli(), log.Timestamp)
	require.Equal(t, "file:///tmp/p.jpg", log.ImageRef)
}

func TestTodayStatsSumsOnlyToday(t *testing.T) {
	now := time.Date(2025, time.March, 5, 18, 0, 0, 0, time.UTC)
	logs := []ActivityLog{
		{Date: "2025-03-05", DurationMinutes: 10, Calories: 98},
		{Date: "2025-03-05", DurationMinutes: 5, Calories: 20},
		{Date: "2025-03-04", DurationMinutes: 30, Calories: 200},
	}

	stats := TodayStats(logs, now)

	require.InDelta(t, 15.0, stats.TotalDurationMinutes, 1e-9)
	require.InDelta(t, 118.0, stats.TotalCalories, 1e-9)
	require.Equal(t, 2, stats.Streak)
}

func TestStreak(t *testing.T) {
	now := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		dates []string
		want  int
	}{
		{name: "empty", dates: nil, want: 0},
		{name: "three consecutive days", dates: []string{"2025-03-05", "2025-03-04", "2025-03-03"}, want: 3},
		{name: "gap stops the count", dates: []string{"2025-03-05", "2025-03-03"}, want: 1},
		{name: "nothing today", dates: []string{"2025-03-04", "2025-03-03"}, want: 0},
		{name: "duplicates counted once", dates: []string{"2025-03-05", "2025-03-05", "2025-03-04"}, want: 2},
		{name: "unparseable dropped", dates: []string{"garbage", "2025-03-05", "", "2025-03-04"}, want: 2},
		{name: "future date breaks", dates: []string{"2025-03-06", "2025-03-05"}, want: 0},
		{name: "across month boundary", dates: []string{"2025-03-05", "2025-03-04", "2025-03-03", "2025-03-02", "2025-03-01", "2025-02-28"}, want: 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs := make([]ActivityLog, 0, len(tc.dates))
			for _, d := range tc.dates {
				logs = append(logs, ActivityLog{Date: d})
			}
			require.Equal(t, tc.want, Streak(logs, now))
		})
	}
}

func TestRecentProgressIsZeroFilledAndOrdered(t *testing.T) {
	// Wednesday.
	now := time.Date(2025, time.March, 5, 21, 0, 0, 0, time.UTC)
	logs := []ActivityLog{
		{Date: "2025-03-05", DurationMinutes: 10, Calories: 98},
		{Date: "2025-03-05", DurationMinutes: 2, Calories: 7},
		{Date: "2025-02-27", DurationMinutes: 20, Calories: 100},
		{Date: "2025-02-20", DurationMinutes: 99, Calories: 999},
	}

	points := RecentProgress(logs, now, DefaultProgressDays)

	require.Len(t, points, 7)
	labels := make([]string, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Label)
	}
	require.Equal(t, []string{"Thu", "Fri", "Sat", "Sun", "Mon", "Tue", "Wed"}, labels)
	require.Equal(t, "2025-02-27", points[0].Date)
	require.InDelta(t, 100.0, points[0].TotalCalories, 1e-9)
	require.Zero(t, points[3].TotalCalories)
	require.Equal(t, "2025-03-05", points[6].Date)
	require.InDelta(t, 105.0, points[6].TotalCalories, 1e-9)
	require.InDelta(t, 12.0, points[6].TotalDurationMinutes, 1e-9)
}

func TestRecentProgressWithNoLogs(t *testing.T) {
	now := time.Date(2025, time.March, 5, 21, 0, 0, 0, time.UTC)

	points := RecentProgress(nil, now, 7)
	require.Len(t, points, 7)
	for _, p := range points {
		require.Zero(t, p.TotalCalories)
		require.Zero(t, p.TotalDurationMinutes)
	}
	require.Empty(t, RecentProgress(nil, now, 0))
}

func TestSummarizeOrdersByCalories(t *testing.T) {
	logs := []ActivityLog{
		{Workout: "Yoga", DurationMinutes: 30, Calories: 110},
		{Workout: "Running", DurationMinutes: 20, Calories: 196},
		{Workout: "Yoga", DurationMinutes: 15, Calories: 55},
	}

	summary := Summarize(logs)

	require.Len(t, summary, 2)
	require.Equal(t, "Running", summary[0].Workout)
	require.Equal(t, "Yoga", summary[1].Workout)
	require.Equal(t, 2, summary[1].Sessions)
	require.InDelta(t, 45.0, summary[1].TotalDurationMinutes, 1e-9)
	require.InDelta(t, 165.0, summary[1].TotalCalories, 1e-9)
}
