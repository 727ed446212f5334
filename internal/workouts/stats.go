package workouts

import (
	"math"
	"time"
)

// WorkoutStats is a derived view, recomputed per request. It has no
// persistence and is a pure function of the log set and "today".
type WorkoutStats struct {
	CurrentStreak   int        `json:"currentStreak"`
	LongestStreak   int        `json:"longestStreak"`
	LastWorkoutDate *time.Time `json:"lastWorkoutDate"`

	TotalWorkouts  int     `json:"totalWorkouts"`
	TotalMinutes   int     `json:"totalMinutes"`
	WeeklyMinutes  int     `json:"weeklyMinutes"`
	MonthlyMinutes int     `json:"monthlyMinutes"`
	TotalCalories  float64 `json:"totalCalories"`

	FocusAreaCounts      map[string]int      `json:"focusAreaCounts"`
	WorkoutTypeBreakdown map[WorkoutType]int `json:"workoutTypeBreakdown"`

	AverageRPE *float64 `json:"averageRpe"`

	// WeeklyProgress[0] is Monday of the current week, [6] is Sunday.
	WeeklyProgress [7]bool `json:"weeklyProgress"`
}

// ComputeStats aggregates the full log set of one user. It never errors:
// an empty set yields zero totals with nil AverageRPE/LastWorkoutDate, and
// missing optional fields contribute nothing. The caller resolves "today"
// once, so week and month boundaries cannot shift mid-computation.
func ComputeStats(logs []WorkoutLog, today time.Time) WorkoutStats {
	stats := WorkoutStats{
		FocusAreaCounts:      make(map[string]int),
		WorkoutTypeBreakdown: make(map[WorkoutType]int),
	}

	todayDate := DateOnly(today)
	weekStart := StartOfWeek(todayDate)
	weekEnd := AddDays(weekStart, 7)
	monthStart := StartOfMonth(todayDate)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var rpeSum int
	for _, l := range logs {
		day := DateOnly(l.WorkoutDate)

		stats.TotalWorkouts++
		stats.TotalMinutes += l.DurationMinutes
		rpeSum += l.RPE

		if !day.Before(weekStart) && day.Before(weekEnd) {
			stats.WeeklyMinutes += l.DurationMinutes
			dayIdx := int(day.Sub(weekStart).Hours() / 24)
			stats.WeeklyProgress[dayIdx] = true
		}
		if !day.Before(monthStart) && day.Before(monthEnd) {
			stats.MonthlyMinutes += l.DurationMinutes
		}

		if l.CalorieEstimate != nil {
			stats.TotalCalories += *l.CalorieEstimate
		}

		for _, area := range l.FocusAreas {
			stats.FocusAreaCounts[area]++
		}
		stats.WorkoutTypeBreakdown[l.WorkoutType]++
	}

	if len(logs) > 0 {
		avg := math.Round(float64(rpeSum)/float64(len(logs))*10) / 10
		stats.AverageRPE = &avg
	}

	streaks := ComputeStreaks(DistinctDates(logs), todayDate)
	stats.CurrentStreak = streaks.CurrentStreak
	stats.LongestStreak = streaks.LongestStreak
	stats.LastWorkoutDate = streaks.LastWorkoutDate

	return stats
}
