package model

import "time"

type NotificationType string

const (
	NotificationPaymentSucceeded  NotificationType = "payment_succeeded"
	NotificationPaymentFailed     NotificationType = "payment_failed"
	NotificationBookingUpdate     NotificationType = "booking_update"
	NotificationStarWishUpdate    NotificationType = "star_wish_update"
	NotificationExpertApplication NotificationType = "expert_application"
	NotificationNewReview         NotificationType = "new_review"
)

// Notification is a user-facing message produced after a state transition.
type Notification struct {
	ID              int64            `json:"id"`
	RecipientUserID int64            `json:"recipient_user_id"`
	Type            NotificationType `json:"type"`
	Message         string           `json:"message"`
	Link            *string          `json:"link,omitempty"`
	IsRead          bool             `json:"is_read"`
	CreatedAt       time.Time        `json:"created_at"`
}
