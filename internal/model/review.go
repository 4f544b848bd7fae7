package model

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID             int64     `json:"id"`
	ReviewerUserID int64     `json:"reviewer_user_id"`
	ExpertUserID   int64     `json:"expert_user_id"`
	BookingID      *int64    `json:"booking_id,omitempty"`
	Rating         int       `json:"rating"`
	Comment        *string   `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RatingSummary is the aggregate of all live reviews of an expert.
type RatingSummary struct {
	Quantity int
	Average  float64
}
