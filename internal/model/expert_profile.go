package model

import "time"

type ExpertProfile struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"user_id"`
	Headline             string     `json:"headline"`
	Bio                  string     `json:"bio"`
	Category             string     `json:"category"`
	PricePerSession      int64      `json:"price_per_session"`
	RatingsAverage       float64    `json:"ratings_average"`  // кэш, пересчитывается из reviews
	RatingsQuantity      int        `json:"ratings_quantity"` // кэш, пересчитывается из reviews
	ApplicationTimestamp *time.Time `json:"application_timestamp"`
	ApprovalTimestamp    *time.Time `json:"approval_timestamp"`
	RejectionReason      *string    `json:"rejection_reason"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ExpertApplication is the profile data submitted with an expert application.
type ExpertApplication struct {
	Headline        string
	Bio             string
	Category        string
	PricePerSession int64
}
