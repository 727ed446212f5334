package workouts

import "time"

type StreakResult struct {
	CurrentStreak   int        `json:"currentStreak"`
	LongestStreak   int        `json:"longestStreak"`
	LastWorkoutDate *time.Time `json:"lastWorkoutDate"`
}

// ComputeStreaks expects a deduplicated, ascending-sorted list of calendar
// dates (see DistinctDates) and the caller-supplied "today". The current
// streak stays alive if the most recent workout was today or yesterday, so
// the user does not see a zero before their first workout of the day.
func ComputeStreaks(distinctSortedDates []time.Time, today time.Time) StreakResult {
	if len(distinctSortedDates) == 0 {
		return StreakResult{}
	}

	last := distinctSortedDates[len(distinctSortedDates)-1]
	result := StreakResult{
		LastWorkoutDate: &last,
	}

	longest, run := 1, 1
	for i := 1; i < len(distinctSortedDates); i++ {
		if distinctSortedDates[i].Equal(AddDays(distinctSortedDates[i-1], 1)) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	result.LongestStreak = longest

	todayDate := DateOnly(today)
	yesterday := AddDays(todayDate, -1)
	if !last.Equal(todayDate) && !last.Equal(yesterday) {
		// streak broken, nothing logged recently enough to keep it alive
		return result
	}

	dateSet := make(map[time.Time]struct{}, len(distinctSortedDates))
	for _, d := range distinctSortedDates {
		dateSet[d] = struct{}{}
	}

	current := 0
	for day := last; ; day = AddDays(day, -1) {
		if _, ok := dateSet[day]; !ok {
			break
		}
		current++
	}
	result.CurrentStreak = current

	return result
}
