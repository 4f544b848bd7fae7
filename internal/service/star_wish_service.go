package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Freeeeeet/marketplace/internal/model"
	"go.uber.org/zap"
)

// StarWishService drives custom video requests through their lifecycle.
type StarWishService struct {
	requests StarWishRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewStarWishService(requests StarWishRepository, notifier Notifier, logger *zap.Logger) *StarWishService {
	return &StarWishService{
		requests: requests,
		notifier: notifier,
		logger:   logger,
	}
}

type CreateStarWishInput struct {
	UserID         int64
	ExpertID       int64
	ServiceID      int64
	Type           string
	PriceAtBooking int64
}

func (s *StarWishService) CreateStarWish(ctx context.Context, in CreateStarWishInput) (*model.StarWishRequest, error) {
	if in.UserID == in.ExpertID {
		return nil, &ValidationError{Field: "expert_id", Message: "cannot request a video from yourself"}
	}
	if in.PriceAtBooking <= 0 {
		return nil, &ValidationError{Field: "price_at_booking", Message: "must be positive"}
	}

	request := &model.StarWishRequest{
		UserID:         in.UserID,
		ExpertID:       in.ExpertID,
		ServiceID:      in.ServiceID,
		Type:           in.Type,
		Status:         model.StarWishStatusPendingPayment,
		PriceAtBooking: in.PriceAtBooking,
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("create star wish request: %w", err)
	}

	s.logger.Info("Star wish request created",
		zap.Int64("star_wish_id", request.ID),
		zap.Int64("user_id", in.UserID),
		zap.Int64("expert_id", in.ExpertID),
	)

	return request, nil
}

func (s *StarWishService) GetByID(ctx context.Context, id int64) (*model.StarWishRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get star wish request: %w", err)
	}
	if request == nil {
		return nil, &NotFoundError{Entity: "star wish request", ID: id}
	}
	return request, nil
}

func (s *StarWishService) OnPaymentSucceeded(ctx context.Context, requestID, paymentID int64) error {
	applied, err := s.requests.Transition(ctx, requestID,
		model.StarWishStatusPendingPayment, model.StarWishStatusPendingAcceptance,
		model.TransitionUpdate{PaymentID: &paymentID},
	)
	if err != nil {
		return fmt.Errorf("transition star wish request: %w", err)
	}

	request, err := s.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	if !applied {
		s.logger.Debug("Payment cascade is a no-op for star wish request",
			zap.Int64("star_wish_id", requestID),
			zap.Int64("payment_id", paymentID),
			zap.String("status", string(request.Status)),
		)
		return nil
	}

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: request.ExpertID,
		Type:            model.NotificationStarWishUpdate,
		Message:         fmt.Sprintf("New paid star wish request #%d is waiting for you.", request.ID),
		Link:            starWishLink(request.ID),
	})

	return nil
}

func (s *StarWishService) OnPaymentFailed(ctx context.Context, requestID, paymentID int64) error {
	request, err := s.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	if request.Status != model.StarWishStatusPendingPayment {
		return nil
	}

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: request.UserID,
		Type:            model.NotificationPaymentFailed,
		Message:         fmt.Sprintf("Payment for star wish request #%d failed. You can try paying again.", request.ID),
		Link:            starWishLink(request.ID),
	})

	return nil
}

func (s *StarWishService) Cancel(ctx context.Context, requestID int64, actor Actor, reason string) (*model.StarWishRequest, error) {
	var allowed []model.StarWishStatus
	switch actor.Role {
	case ActorUser:
		allowed = model.StarWishUserCancellable
	case ActorExpert:
		allowed = model.StarWishExpertCancellable
	default:
		return nil, &ValidationError{Field: "actor", Message: "unknown role"}
	}

	var upd model.TransitionUpdate
	if reason != "" {
		upd.CancellationReason = &reason
	}

	request, err := s.transition(ctx, requestID, actor, "cancel", allowed, model.StarWishStatusCancelled, upd)
	if err != nil {
		return nil, err
	}

	recipient := request.ExpertID
	if actor.Role == ActorExpert {
		recipient = request.UserID
	}
	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: recipient,
		Type:            model.NotificationStarWishUpdate,
		Message:         fmt.Sprintf("Star wish request #%d was cancelled.", request.ID),
		Link:            starWishLink(request.ID),
	})

	return request, nil
}

func (s *StarWishService) Accept(ctx context.Context, requestID, expertID int64) (*model.StarWishRequest, error) {
	request, err := s.transition(ctx, requestID, Actor{UserID: expertID, Role: ActorExpert}, "accept",
		[]model.StarWishStatus{model.StarWishStatusPendingAcceptance}, model.StarWishStatusAccepted, model.TransitionUpdate{})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: request.UserID,
		Type:            model.NotificationStarWishUpdate,
		Message:         fmt.Sprintf("Star wish request #%d was accepted.", request.ID),
		Link:            starWishLink(request.ID),
	})

	return request, nil
}

func (s *StarWishService) Reject(ctx context.Context, requestID, expertID int64, reason string) (*model.StarWishRequest, error) {
	var upd model.TransitionUpdate
	if reason != "" {
		upd.CancellationReason = &reason
	}

	request, err := s.transition(ctx, requestID, Actor{UserID: expertID, Role: ActorExpert}, "reject",
		[]model.StarWishStatus{model.StarWishStatusPendingAcceptance}, model.StarWishStatusRejected, upd)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: request.UserID,
		Type:            model.NotificationStarWishUpdate,
		Message:         fmt.Sprintf("Star wish request #%d was rejected.", request.ID),
		Link:            starWishLink(request.ID),
	})

	return request, nil
}

func (s *StarWishService) StartSession(ctx context.Context, requestID int64, actor Actor, startedAt time.Time) (*model.StarWishRequest, error) {
	return s.transition(ctx, requestID, actor, "start",
		[]model.StarWishStatus{model.StarWishStatusAccepted}, model.StarWishStatusInProgress,
		model.TransitionUpdate{ActualStartTime: &startedAt})
}

func (s *StarWishService) CompleteSession(ctx context.Context, requestID int64, actualStart, actualEnd time.Time) (*model.StarWishRequest, error) {
	if actualEnd.Before(actualStart) {
		return nil, &ValidationError{Field: "actual_end_time", Message: "must not be before actual start time"}
	}

	return s.transition(ctx, requestID, Actor{}, "complete",
		[]model.StarWishStatus{model.StarWishStatusInProgress}, model.StarWishStatusCompleted,
		model.TransitionUpdate{ActualStartTime: &actualStart, ActualEndTime: &actualEnd})
}

func (s *StarWishService) transition(
	ctx context.Context,
	requestID int64,
	actor Actor,
	action string,
	allowed []model.StarWishStatus,
	to model.StarWishStatus,
	upd model.TransitionUpdate,
) (*model.StarWishRequest, error) {
	request, err := s.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := checkParticipant(actor, request.UserID, request.ExpertID, "star wish request"); err != nil {
		return nil, err
	}

	invalid := &InvalidStateError{
		Entity:  "star wish request",
		ID:      requestID,
		Action:  action,
		Current: string(request.Status),
		Allowed: statusNames(allowed),
	}

	if !slices.Contains(allowed, request.Status) || !request.Status.CanTransitionTo(to) {
		return nil, invalid
	}

	applied, err := s.requests.Transition(ctx, requestID, request.Status, to, upd)
	if err != nil {
		return nil, fmt.Errorf("transition star wish request: %w", err)
	}

	if !applied {
		current, err := s.GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
		invalid.Current = string(current.Status)
		return nil, invalid
	}

	s.logger.Info("Star wish request status changed",
		zap.Int64("star_wish_id", requestID),
		zap.String("from", string(request.Status)),
		zap.String("to", string(to)),
	)

	return s.GetByID(ctx, requestID)
}

func starWishLink(id int64) *string {
	link := fmt.Sprintf("/star-wishes/%d", id)
	return &link
}
