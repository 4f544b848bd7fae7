package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Freeeeeet/marketplace/internal/model"
	"go.uber.org/zap"
)

type ActorRole string

const (
	ActorUser   ActorRole = "user"
	ActorExpert ActorRole = "expert"
)

// Actor is the party initiating a lifecycle transition.
type Actor struct {
	UserID int64
	Role   ActorRole
}

type BookingService struct {
	bookings BookingRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewBookingService(bookings BookingRepository, notifier Notifier, logger *zap.Logger) *BookingService {
	return &BookingService{
		bookings: bookings,
		notifier: notifier,
		logger:   logger,
	}
}

type CreateBookingInput struct {
	UserID             int64
	ExpertID           int64
	ServiceID          int64
	Type               string
	PriceAtBooking     int64
	ScheduledStartTime *time.Time
	ScheduledEndTime   *time.Time
}

// CreateBooking создаёт бронирование в статусе pending_payment
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if in.UserID == in.ExpertID {
		return nil, &ValidationError{Field: "expert_id", Message: "cannot book yourself"}
	}
	if in.PriceAtBooking <= 0 {
		return nil, &ValidationError{Field: "price_at_booking", Message: "must be positive"}
	}
	if in.ScheduledStartTime != nil && in.ScheduledEndTime != nil && in.ScheduledEndTime.Before(*in.ScheduledStartTime) {
		return nil, &ValidationError{Field: "scheduled_end_time", Message: "must not be before start"}
	}

	booking := &model.Booking{
		UserID:             in.UserID,
		ExpertID:           in.ExpertID,
		ServiceID:          in.ServiceID,
		Type:               in.Type,
		Status:             model.BookingStatusPendingPayment,
		PriceAtBooking:     in.PriceAtBooking,
		ScheduledStartTime: in.ScheduledStartTime,
		ScheduledEndTime:   in.ScheduledEndTime,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("user_id", in.UserID),
		zap.Int64("expert_id", in.ExpertID),
	)

	return booking, nil
}

// GetByID получает бронирование по ID
func (s *BookingService) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, &NotFoundError{Entity: "booking", ID: id}
	}
	return booking, nil
}

// OnPaymentSucceeded moves a booking out of pending_payment. A booking that has
// already moved on is left as is.
func (s *BookingService) OnPaymentSucceeded(ctx context.Context, bookingID, paymentID int64) error {
	applied, err := s.bookings.Transition(ctx, bookingID,
		model.BookingStatusPendingPayment, model.BookingStatusPendingConfirmation,
		model.TransitionUpdate{PaymentID: &paymentID},
	)
	if err != nil {
		return fmt.Errorf("transition booking: %w", err)
	}

	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if !applied {
		s.logger.Debug("Payment cascade is a no-op for booking",
			zap.Int64("booking_id", bookingID),
			zap.Int64("payment_id", paymentID),
			zap.String("status", string(booking.Status)),
		)
		return nil
	}

	s.logger.Info("Booking paid",
		zap.Int64("booking_id", bookingID),
		zap.Int64("payment_id", paymentID),
	)

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: booking.ExpertID,
		Type:            model.NotificationBookingUpdate,
		Message:         fmt.Sprintf("New paid booking #%d is waiting for your confirmation.", booking.ID),
		Link:            bookingLink(booking.ID),
	})

	return nil
}

// OnPaymentFailed оставляет бронирование в pending_payment, чтобы можно было оплатить повторно
func (s *BookingService) OnPaymentFailed(ctx context.Context, bookingID, paymentID int64) error {
	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if booking.Status != model.BookingStatusPendingPayment {
		return nil
	}

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: booking.UserID,
		Type:            model.NotificationPaymentFailed,
		Message:         fmt.Sprintf("Payment for booking #%d failed. You can try paying again.", booking.ID),
		Link:            bookingLink(booking.ID),
	})

	return nil
}

// Cancel отменяет бронирование от имени пользователя или эксперта
func (s *BookingService) Cancel(ctx context.Context, bookingID int64, actor Actor, reason string) (*model.Booking, error) {
	var (
		allowed   []model.BookingStatus
		to        model.BookingStatus
		recipient func(*model.Booking) int64
	)

	switch actor.Role {
	case ActorUser:
		allowed, to = model.BookingUserCancellable, model.BookingStatusCancelledUser
		recipient = func(b *model.Booking) int64 { return b.ExpertID }
	case ActorExpert:
		allowed, to = model.BookingExpertCancellable, model.BookingStatusCancelledExpert
		recipient = func(b *model.Booking) int64 { return b.UserID }
	default:
		return nil, &ValidationError{Field: "actor", Message: "unknown role"}
	}

	var upd model.TransitionUpdate
	if reason != "" {
		upd.CancellationReason = &reason
	}

	booking, err := s.transition(ctx, bookingID, actor, "cancel", allowed, to, upd)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: recipient(booking),
		Type:            model.NotificationBookingUpdate,
		Message:         fmt.Sprintf("Booking #%d was cancelled.", booking.ID),
		Link:            bookingLink(booking.ID),
	})

	return booking, nil
}

// Confirm подтверждает оплаченное бронирование (эксперт)
func (s *BookingService) Confirm(ctx context.Context, bookingID, expertID int64) (*model.Booking, error) {
	booking, err := s.transition(ctx, bookingID, Actor{UserID: expertID, Role: ActorExpert}, "confirm",
		[]model.BookingStatus{model.BookingStatusPendingConfirmation}, model.BookingStatusConfirmed, model.TransitionUpdate{})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: booking.UserID,
		Type:            model.NotificationBookingUpdate,
		Message:         fmt.Sprintf("Booking #%d was confirmed by the expert.", booking.ID),
		Link:            bookingLink(booking.ID),
	})

	return booking, nil
}

// Reject отклоняет оплаченное бронирование (эксперт)
func (s *BookingService) Reject(ctx context.Context, bookingID, expertID int64, reason string) (*model.Booking, error) {
	var upd model.TransitionUpdate
	if reason != "" {
		upd.CancellationReason = &reason
	}

	booking, err := s.transition(ctx, bookingID, Actor{UserID: expertID, Role: ActorExpert}, "reject",
		[]model.BookingStatus{model.BookingStatusPendingConfirmation}, model.BookingStatusRejected, upd)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: booking.UserID,
		Type:            model.NotificationBookingUpdate,
		Message:         fmt.Sprintf("Booking #%d was rejected by the expert.", booking.ID),
		Link:            bookingLink(booking.ID),
	})

	return booking, nil
}

// StartSession переводит подтверждённое бронирование в in_progress
func (s *BookingService) StartSession(ctx context.Context, bookingID int64, actor Actor, startedAt time.Time) (*model.Booking, error) {
	return s.transition(ctx, bookingID, actor, "start",
		[]model.BookingStatus{model.BookingStatusConfirmed}, model.BookingStatusInProgress,
		model.TransitionUpdate{ActualStartTime: &startedAt})
}

// CompleteSession завершает сессию; длительность вычисляется из actual start/end
func (s *BookingService) CompleteSession(ctx context.Context, bookingID int64, actualStart, actualEnd time.Time) (*model.Booking, error) {
	if actualEnd.Before(actualStart) {
		return nil, &ValidationError{Field: "actual_end_time", Message: "must not be before actual start time"}
	}

	booking, err := s.transition(ctx, bookingID, Actor{}, "complete",
		[]model.BookingStatus{model.BookingStatusInProgress}, model.BookingStatusCompleted,
		model.TransitionUpdate{ActualStartTime: &actualStart, ActualEndTime: &actualEnd})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session completed",
		zap.Int64("booking_id", booking.ID),
		zap.Duration("duration", booking.Duration()),
	)

	return booking, nil
}

// transition validates a caller-initiated transition and applies it with a
// conditional update. A zero Actor skips the ownership check.
func (s *BookingService) transition(
	ctx context.Context,
	bookingID int64,
	actor Actor,
	action string,
	allowed []model.BookingStatus,
	to model.BookingStatus,
	upd model.TransitionUpdate,
) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := checkParticipant(actor, booking.UserID, booking.ExpertID, "booking"); err != nil {
		return nil, err
	}

	invalid := &InvalidStateError{
		Entity:  "booking",
		ID:      bookingID,
		Action:  action,
		Current: string(booking.Status),
		Allowed: statusNames(allowed),
	}

	if !slices.Contains(allowed, booking.Status) || !booking.Status.CanTransitionTo(to) {
		return nil, invalid
	}

	applied, err := s.bookings.Transition(ctx, bookingID, booking.Status, to, upd)
	if err != nil {
		return nil, fmt.Errorf("transition booking: %w", err)
	}

	if !applied {
		// Статус изменился между чтением и записью
		current, err := s.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		invalid.Current = string(current.Status)
		return nil, invalid
	}

	s.logger.Info("Booking status changed",
		zap.Int64("booking_id", bookingID),
		zap.String("from", string(booking.Status)),
		zap.String("to", string(to)),
		zap.Int64("actor_id", actor.UserID),
	)

	return s.GetByID(ctx, bookingID)
}

func checkParticipant(actor Actor, userID, expertID int64, entity string) error {
	switch actor.Role {
	case "":
		return nil
	case ActorUser:
		if actor.UserID != userID {
			return &PermissionError{Message: "no permission to change this " + entity}
		}
	case ActorExpert:
		if actor.UserID != expertID {
			return &PermissionError{Message: "no permission to change this " + entity}
		}
	default:
		return &ValidationError{Field: "actor", Message: "unknown role"}
	}
	return nil
}

func bookingLink(id int64) *string {
	link := fmt.Sprintf("/bookings/%d", id)
	return &link
}
