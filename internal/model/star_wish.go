package model

import (
	"slices"
	"time"
)

type StarWishStatus string

const (
	StarWishStatusPendingPayment    StarWishStatus = "pending_payment"
	StarWishStatusPendingAcceptance StarWishStatus = "pending_acceptance"
	StarWishStatusAccepted          StarWishStatus = "accepted"
	StarWishStatusRejected          StarWishStatus = "rejected"
	StarWishStatusInProgress        StarWishStatus = "in_progress"
	StarWishStatusCompleted         StarWishStatus = "completed"
	StarWishStatusCancelled         StarWishStatus = "cancelled"
)

var starWishEdges = map[StarWishStatus][]StarWishStatus{
	StarWishStatusPendingPayment:    {StarWishStatusPendingAcceptance, StarWishStatusCancelled},
	StarWishStatusPendingAcceptance: {StarWishStatusAccepted, StarWishStatusRejected, StarWishStatusCancelled},
	StarWishStatusAccepted:          {StarWishStatusInProgress, StarWishStatusCancelled},
	StarWishStatusInProgress:        {StarWishStatusCompleted},
}

var (
	StarWishUserCancellable   = []StarWishStatus{StarWishStatusPendingPayment, StarWishStatusPendingAcceptance, StarWishStatusAccepted}
	StarWishExpertCancellable = []StarWishStatus{StarWishStatusPendingAcceptance, StarWishStatusAccepted}
)

func AllStarWishStatuses() []StarWishStatus {
	return []StarWishStatus{
		StarWishStatusPendingPayment,
		StarWishStatusPendingAcceptance,
		StarWishStatusAccepted,
		StarWishStatusRejected,
		StarWishStatusInProgress,
		StarWishStatusCompleted,
		StarWishStatusCancelled,
	}
}

func (s StarWishStatus) CanTransitionTo(next StarWishStatus) bool {
	return slices.Contains(starWishEdges[s], next)
}

func (s StarWishStatus) IsTerminal() bool {
	return len(starWishEdges[s]) == 0
}

// StarWishRequest is an asynchronous custom video request to an expert.
type StarWishRequest struct {
	ID                 int64          `json:"id"`
	UserID             int64          `json:"user_id"`
	ExpertID           int64          `json:"expert_id"`
	ServiceID          int64          `json:"service_id"`
	Type               string         `json:"type"`
	Status             StarWishStatus `json:"status"`
	PriceAtBooking     int64          `json:"price_at_booking"`
	PaymentID          *int64         `json:"payment_id"`
	ScheduledStartTime *time.Time     `json:"scheduled_start_time"`
	ScheduledEndTime   *time.Time     `json:"scheduled_end_time"`
	ActualStartTime    *time.Time     `json:"actual_start_time"`
	ActualEndTime      *time.Time     `json:"actual_end_time"`
	CancellationReason *string        `json:"cancellation_reason"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
