package workouts

import (
	"sort"
	"time"
)

// DateOnly truncates t to its calendar date, dropping time-of-day
// and pinning the result to UTC midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// StartOfWeek returns the Monday of the week containing t.
// Week start is Monday (ISO), not Sunday.
func StartOfWeek(t time.Time) time.Time {
	d := DateOnly(t)
	weekday := int(d.Weekday())
	if weekday == 0 {
		// time.Sunday is 0, but Sunday is the last day of our week
		weekday = 7
	}
	return AddDays(d, -(weekday - 1))
}

func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DistinctDates returns the deduplicated, ascending-sorted set of calendar
// dates on which at least one of the given workouts was logged. Same-day
// duplicates collapse to one date; only streak math uses this set.
func DistinctDates(logs []WorkoutLog) []time.Time {
	seen := make(map[time.Time]struct{}, len(logs))
	var dates []time.Time
	for _, l := range logs {
		day := DateOnly(l.WorkoutDate)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		dates = append(dates, day)
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	return dates
}
