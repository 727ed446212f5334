package workouts

import "time"

type WorkoutType string

const (
	TypeReformer WorkoutType = "reformer"
	TypeMat      WorkoutType = "mat"
	TypeTower    WorkoutType = "tower"
	TypeOther    WorkoutType = "other"
)

func (wt WorkoutType) Valid() bool {
	switch wt {
	case TypeReformer, TypeMat, TypeTower, TypeOther:
		return true
	}
	return false
}

var validFocusAreas = map[string]bool{
	"core":     true,
	"glutes":   true,
	"legs":     true,
	"arms":     true,
	"back":     true,
	"mobility": true,
}

func ValidFocusArea(area string) bool {
	return validFocusAreas[area]
}

// WorkoutLog is one logged session. WorkoutDate carries calendar-date
// semantics only: it is normalized with DateOnly on every boundary and
// never compared as an instant.
type WorkoutLog struct {
	ID               int         `json:"id"`
	UserID           string      `json:"userId"`
	WorkoutDate      time.Time   `json:"workoutDate"`
	DurationMinutes  int         `json:"durationMinutes"`
	WorkoutType      WorkoutType `json:"workoutType"`
	RPE              int         `json:"rpe"`
	FocusAreas       []string    `json:"focusAreas"`
	CalorieEstimate  *float64    `json:"calorieEstimate,omitempty"`
	StudioID         *int        `json:"studioId,omitempty"`
	CustomStudioName string      `json:"customStudioName,omitempty"`
	SessionID        *int        `json:"sessionId,omitempty"`
	ImageURL         string      `json:"imageUrl,omitempty"`
	IsShared         bool        `json:"isShared"`
	CreatedAt        time.Time   `json:"createdAt"`
}
