package domain

import (
	"sort"
	"time"
)

const (
	// ReferenceBodyWeightKg is the body weight assumed by the calorie formula.
	ReferenceBodyWeightKg = 70.0
	// DefaultProgressDays is the window used by the dashboard chart.
	DefaultProgressDays = 7
)

// CalculateCalories estimates kcal burned: met * 3.5 * weight / 200 per minute.
func CalculateCalories(met, durationMinutes float64) float64 {
	return met * 3.5 * ReferenceBodyWeightKg / 200.0 * durationMinutes
}

// TodayStats sums the logs dated on now's local calendar day and computes the streak.
func TodayStats(logs []ActivityLog, now time.Time) DailyStats {
	today := now.Format(DateLayout)
	var stats DailyStats
	for _, log := range logs {
		if log.Date != today {
			continue
		}
		stats.TotalDurationMinutes += log.DurationMinutes
		stats.TotalCalories += log.Calories
	}
	stats.Streak = Streak(logs, now)
	return stats
}

// Streak counts consecutive days with at least one log, walking back from today.
// A day without logs today yields 0. Unparseable dates are ignored.
func Streak(logs []ActivityLog, now time.Time) int {
	if len(logs) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(logs))
	dates := make([]string, 0, len(logs))
	for _, log := range logs {
		parsed, err := time.ParseInLocation(DateLayout, log.Date, now.Location())
		if err != nil {
			continue
		}
		key := parsed.Format(DateLayout)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, key)
	}
	// DateLayout sorts lexically in calendar order.
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	streak := 0
	for _, date := range dates {
		if date != dayOffset(now, -streak).Format(DateLayout) {
			break
		}
		streak++
	}
	return streak
}

// RecentProgress returns exactly days points, oldest first and ending today, with
// zero totals for days without logs.
func RecentProgress(logs []ActivityLog, now time.Time, days int) []DailyProgressPoint {
	if days <= 0 {
		return []DailyProgressPoint{}
	}
	byDate := make(map[string]*DailyProgressPoint, days)
	points := make([]DailyProgressPoint, days)
	for i := 0; i < days; i++ {
		day := dayOffset(now, -(days - 1 - i))
		points[i] = DailyProgressPoint{
			Label: day.Weekday().String()[:3],
			Date:  day.Format(DateLayout),
		}
		byDate[points[i].Date] = &points[i]
	}
	for _, log := range logs {
		point, ok := byDate[log.Date]
		if !ok {
			continue
		}
		point.TotalCalories += log.Calories
		point.TotalDurationMinutes += log.DurationMinutes
	}
	return points
}

// Summarize totals logs per workout name, ordered by total calories descending.
func Summarize(logs []ActivityLog) []WorkoutSummary {
	index := make(map[string]int)
	out := make([]WorkoutSummary, 0)
	for _, log := range logs {
		idx, ok := index[log.Workout]
		if !ok {
			idx = len(out)
			index[log.Workout] = idx
			out = append(out, WorkoutSummary{Workout: log.Workout})
		}
		out[idx].Sessions++
		out[idx].TotalDurationMinutes += log.DurationMinutes
		out[idx].TotalCalories += log.Calories
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalCalories > out[j].TotalCalories
	})
	return out
}

// SortNewestFirst orders logs by timestamp descending in place.
func SortNewestFirst(logs []ActivityLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp > logs[j].Timestamp
	})
}

// dayOffset returns noon of the local calendar day offset days from now, which stays
// on the right date across DST transitions.
func dayOffset(now time.Time, offset int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+offset, 12, 0, 0, 0, now.Location())
}
