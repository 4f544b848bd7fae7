package model

import (
	"slices"
	"time"
)

type BookingStatus string

const (
	BookingStatusPendingPayment      BookingStatus = "pending_payment"      // Ожидает оплаты
	BookingStatusPendingConfirmation BookingStatus = "pending_confirmation" // Оплачено, ждёт эксперта
	BookingStatusConfirmed           BookingStatus = "confirmed"            // Подтверждено экспертом
	BookingStatusInProgress          BookingStatus = "in_progress"          // Сессия идёт
	BookingStatusCompleted           BookingStatus = "completed"            // Завершено
	BookingStatusCancelledUser       BookingStatus = "cancelled_user"       // Отменено пользователем
	BookingStatusCancelledExpert     BookingStatus = "cancelled_expert"     // Отменено экспертом
	BookingStatusRejected            BookingStatus = "rejected"             // Отклонено экспертом
)

// bookingEdges is the complete edge list of the booking state machine.
var bookingEdges = map[BookingStatus][]BookingStatus{
	BookingStatusPendingPayment:      {BookingStatusPendingConfirmation, BookingStatusCancelledUser},
	BookingStatusPendingConfirmation: {BookingStatusConfirmed, BookingStatusRejected, BookingStatusCancelledUser, BookingStatusCancelledExpert},
	BookingStatusConfirmed:           {BookingStatusInProgress, BookingStatusCancelledUser, BookingStatusCancelledExpert},
	BookingStatusInProgress:          {BookingStatusCompleted},
}

// Из каких статусов разрешена отмена
var (
	BookingUserCancellable   = []BookingStatus{BookingStatusPendingPayment, BookingStatusPendingConfirmation, BookingStatusConfirmed}
	BookingExpertCancellable = []BookingStatus{BookingStatusPendingConfirmation, BookingStatusConfirmed}
)

// AllBookingStatuses returns every declared booking status.
func AllBookingStatuses() []BookingStatus {
	return []BookingStatus{
		BookingStatusPendingPayment,
		BookingStatusPendingConfirmation,
		BookingStatusConfirmed,
		BookingStatusInProgress,
		BookingStatusCompleted,
		BookingStatusCancelledUser,
		BookingStatusCancelledExpert,
		BookingStatusRejected,
	}
}

// CanTransitionTo reports whether next is a declared edge from s.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return slices.Contains(bookingEdges[s], next)
}

// IsTerminal reports whether no transitions leave s.
func (s BookingStatus) IsTerminal() bool {
	return len(bookingEdges[s]) == 0
}

type Booking struct {
	ID                 int64         `json:"id"`
	UserID             int64         `json:"user_id"`
	ExpertID           int64         `json:"expert_id"` // user ID эксперта
	ServiceID          int64         `json:"service_id"`
	Type               string        `json:"type"`
	Status             BookingStatus `json:"status"`
	PriceAtBooking     int64         `json:"price_at_booking"` // в минимальных единицах валюты
	PaymentID          *int64        `json:"payment_id"`
	ScheduledStartTime *time.Time    `json:"scheduled_start_time"`
	ScheduledEndTime   *time.Time    `json:"scheduled_end_time"`
	ActualStartTime    *time.Time    `json:"actual_start_time"`
	ActualEndTime      *time.Time    `json:"actual_end_time"`
	CancellationReason *string       `json:"cancellation_reason"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Duration returns the actual session length, zero until both ends are known.
func (b *Booking) Duration() time.Duration {
	if b.ActualStartTime == nil || b.ActualEndTime == nil {
		return 0
	}
	return b.ActualEndTime.Sub(*b.ActualStartTime)
}

// TransitionUpdate carries the optional columns written together with a status change.
// Nil fields are left untouched.
type TransitionUpdate struct {
	PaymentID          *int64
	CancellationReason *string
	ActualStartTime    *time.Time
	ActualEndTime      *time.Time
}
