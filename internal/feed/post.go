package feed

import "time"

type PostStatus string

const (
	StatusPending  PostStatus = "pending"
	StatusApproved PostStatus = "approved"
	StatusRejected PostStatus = "rejected"
)

func (ps PostStatus) Valid() bool {
	switch ps {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Post is one community feed entry. Every post starts as pending and
// becomes publicly visible only after a moderator approves it.
type Post struct {
	ID          int        `json:"id"`
	UserID      string     `json:"userId"`
	ImageURL    string     `json:"imageUrl"`
	Caption     string     `json:"caption,omitempty"`
	WorkoutID   *int       `json:"workoutId,omitempty"`
	Status      PostStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	ModeratedAt *time.Time `json:"moderatedAt,omitempty"`
}
