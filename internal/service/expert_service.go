package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/marketplace/internal/model"
	"go.uber.org/zap"
)

// ExpertService ведёт заявки пользователей на роль эксперта
type ExpertService struct {
	users    UserRepository
	profiles ExpertProfileRepository
	notifier Notifier
	now      func() time.Time
	logger   *zap.Logger
}

func NewExpertService(users UserRepository, profiles ExpertProfileRepository, notifier Notifier, logger *zap.Logger) *ExpertService {
	return &ExpertService{
		users:    users,
		profiles: profiles,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
}

// Apply подаёт заявку: допустим только переход not_applied -> pending
func (s *ExpertService) Apply(ctx context.Context, userID int64, app model.ExpertApplication) (*model.ExpertProfile, error) {
	if strings.TrimSpace(app.Headline) == "" {
		return nil, &ValidationError{Field: "headline", Message: "is required"}
	}
	if app.PricePerSession < 0 {
		return nil, &ValidationError{Field: "price_per_session", Message: "must not be negative"}
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.ExpertApplicationStatus != model.ExpertApplicationNotApplied {
		return nil, applicationStateError(userID, "apply as expert", user.ExpertApplicationStatus, model.ExpertApplicationNotApplied)
	}

	// Профиль пишется первым: если смена статуса не пройдёт,
	// остаётся лишь профиль с заявкой, а пользователь может подать её снова
	profile, err := s.profiles.UpsertApplication(ctx, userID, app, s.now())
	if err != nil {
		return nil, fmt.Errorf("upsert expert profile: %w", err)
	}

	applied, err := s.users.SubmitExpertApplication(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("submit expert application: %w", err)
	}

	if !applied {
		current, err := s.getUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		return nil, applicationStateError(userID, "apply as expert", current.ExpertApplicationStatus, model.ExpertApplicationNotApplied)
	}

	s.logger.Info("Expert application submitted",
		zap.Int64("user_id", userID),
		zap.Int64("profile_id", profile.ID),
	)

	return profile, nil
}

// Decide records an admin decision on a pending application. The role set and
// the application status change in one conditional row update.
func (s *ExpertService) Decide(
	ctx context.Context,
	adminID, targetUserID int64,
	decision model.ExpertApplicationStatus,
	reason *string,
) (*model.User, error) {
	if decision != model.ExpertApplicationApproved && decision != model.ExpertApplicationRejected {
		return nil, &ValidationError{Field: "decision", Message: "must be approved or rejected"}
	}

	admin, err := s.users.GetByID(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if admin == nil || !admin.IsAdmin() {
		return nil, &PermissionError{Message: "only admins can decide expert applications"}
	}

	target, err := s.getUser(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	if target.ExpertApplicationStatus != model.ExpertApplicationPending {
		return nil, applicationStateError(targetUserID, "decide on", target.ExpertApplicationStatus, model.ExpertApplicationPending)
	}

	applied, err := s.users.DecideExpertApplication(ctx, targetUserID, decision)
	if err != nil {
		return nil, fmt.Errorf("decide expert application: %w", err)
	}

	if !applied {
		current, err := s.getUser(ctx, targetUserID)
		if err != nil {
			return nil, err
		}
		return nil, applicationStateError(targetUserID, "decide on", current.ExpertApplicationStatus, model.ExpertApplicationPending)
	}

	message := "Your expert application was approved."
	if decision == model.ExpertApplicationApproved {
		err = s.profiles.MarkApproved(ctx, targetUserID, s.now())
	} else {
		err = s.profiles.MarkRejected(ctx, targetUserID, reason)
		message = "Your expert application was rejected."
		if reason != nil && *reason != "" {
			message += " Reason: " + *reason
		}
	}
	if err != nil {
		return nil, fmt.Errorf("update expert profile decision: %w", err)
	}

	s.logger.Info("Expert application decided",
		zap.Int64("admin_id", adminID),
		zap.Int64("user_id", targetUserID),
		zap.String("decision", string(decision)),
	)

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: targetUserID,
		Type:            model.NotificationExpertApplication,
		Message:         message,
	})

	return s.getUser(ctx, targetUserID)
}

func (s *ExpertService) getUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, &NotFoundError{Entity: "user", ID: userID}
	}
	return user, nil
}

func applicationStateError(userID int64, action string, current, allowed model.ExpertApplicationStatus) *InvalidStateError {
	return &InvalidStateError{
		Entity:  "expert application of user",
		ID:      userID,
		Action:  action,
		Current: string(current),
		Allowed: []string{string(allowed)},
	}
}
