package workouts

import (
	"fmt"
	"strings"
)

// Recap is the shareable summary card for one logged workout.
type Recap struct {
	WorkoutID       int         `json:"workoutId"`
	Title           string      `json:"title"`
	WorkoutType     WorkoutType `json:"workoutType"`
	DurationMinutes int         `json:"durationMinutes"`
	FocusAreas      []string    `json:"focusAreas"`
	CurrentStreak   int         `json:"currentStreak"`
	ShareText       string      `json:"shareText"`
}

func BuildRecap(wl WorkoutLog, currentStreak int) Recap {
	recap := Recap{
		WorkoutID:       wl.ID,
		Title:           fmt.Sprintf("%d min %s session", wl.DurationMinutes, wl.WorkoutType),
		WorkoutType:     wl.WorkoutType,
		DurationMinutes: wl.DurationMinutes,
		FocusAreas:      wl.FocusAreas,
		CurrentStreak:   currentStreak,
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Just finished a %d min %s workout", wl.DurationMinutes, wl.WorkoutType)
	if len(wl.FocusAreas) > 0 {
		fmt.Fprintf(&sb, " focused on %s", strings.Join(wl.FocusAreas, ", "))
	}
	if currentStreak > 1 {
		fmt.Fprintf(&sb, ", day %d of my streak", currentStreak)
	}
	sb.WriteString(" 🧘")
	recap.ShareText = sb.String()

	return recap
}
