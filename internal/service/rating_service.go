package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Freeeeeet/marketplace/internal/model"
	"go.uber.org/zap"
)

// RatingService owns reviews and the rating cache on expert profiles.
// The cache is always recomputed from the live review set, never adjusted incrementally.
type RatingService struct {
	reviews  ReviewRepository
	bookings BookingRepository
	profiles ExpertProfileRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewRatingService(
	reviews ReviewRepository,
	bookings BookingRepository,
	profiles ExpertProfileRepository,
	notifier Notifier,
	logger *zap.Logger,
) *RatingService {
	return &RatingService{
		reviews:  reviews,
		bookings: bookings,
		profiles: profiles,
		notifier: notifier,
		logger:   logger,
	}
}

// OnReviewChanged пересчитывает рейтинг эксперта по всем отзывам с нуля
func (s *RatingService) OnReviewChanged(ctx context.Context, expertUserID int64) error {
	summary, err := s.reviews.Summarize(ctx, expertUserID)
	if err != nil {
		return fmt.Errorf("summarize reviews: %w", err)
	}

	if summary.Quantity == 0 {
		summary.Average = 0
	}
	summary.Average = roundRating(summary.Average)

	updated, err := s.profiles.UpdateRatings(ctx, expertUserID, summary)
	if err != nil {
		return fmt.Errorf("update ratings: %w", err)
	}

	if !updated {
		return &NotFoundError{Entity: "expert profile", ID: expertUserID}
	}

	s.logger.Debug("Expert ratings recomputed",
		zap.Int64("expert_id", expertUserID),
		zap.Int("quantity", summary.Quantity),
		zap.Float64("average", summary.Average),
	)

	return nil
}

type CreateReviewInput struct {
	ReviewerUserID int64
	ExpertUserID   int64
	BookingID      int64
	Rating         int
	Comment        *string
}

// CreateReview создаёт отзыв после завершённого бронирования
func (s *RatingService) CreateReview(ctx context.Context, in CreateReviewInput) (*model.Review, error) {
	if err := validateRating(in.Rating); err != nil {
		return nil, err
	}
	if in.ReviewerUserID == in.ExpertUserID {
		return nil, &ValidationError{Field: "expert_user_id", Message: "cannot review yourself"}
	}

	completed, err := s.bookings.HasCompleted(ctx, in.ReviewerUserID, in.ExpertUserID, in.BookingID)
	if err != nil {
		return nil, fmt.Errorf("check completed booking: %w", err)
	}
	if !completed {
		return nil, &PermissionError{Message: "you can only review an expert after a completed booking"}
	}

	review := &model.Review{
		ReviewerUserID: in.ReviewerUserID,
		ExpertUserID:   in.ExpertUserID,
		BookingID:      &in.BookingID,
		Rating:         in.Rating,
		Comment:        in.Comment,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, model.ErrReviewExists) {
			return nil, &ConflictError{Message: "you have already reviewed this expert; only one review per expert is allowed"}
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.logger.Info("Review created",
		zap.Int64("review_id", review.ID),
		zap.Int64("reviewer_id", in.ReviewerUserID),
		zap.Int64("expert_id", in.ExpertUserID),
		zap.Int("rating", in.Rating),
	)

	s.refresh(ctx, in.ExpertUserID)

	s.notifier.Notify(ctx, model.Notification{
		RecipientUserID: in.ExpertUserID,
		Type:            model.NotificationNewReview,
		Message:         fmt.Sprintf("You received a new %d-star review.", in.Rating),
	})

	return review, nil
}

// UpdateReview изменяет оценку и комментарий (только автор)
func (s *RatingService) UpdateReview(ctx context.Context, reviewerUserID, reviewID int64, rating int, comment *string) (*model.Review, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}

	review, err := s.ownReview(ctx, reviewerUserID, reviewID)
	if err != nil {
		return nil, err
	}

	if err := s.reviews.Update(ctx, reviewID, rating, comment); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	review.Rating = rating
	review.Comment = comment

	s.refresh(ctx, review.ExpertUserID)

	return review, nil
}

// DeleteReview удаляет отзыв (только автор)
func (s *RatingService) DeleteReview(ctx context.Context, reviewerUserID, reviewID int64) error {
	review, err := s.ownReview(ctx, reviewerUserID, reviewID)
	if err != nil {
		return err
	}

	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	s.logger.Info("Review deleted",
		zap.Int64("review_id", reviewID),
		zap.Int64("expert_id", review.ExpertUserID),
	)

	s.refresh(ctx, review.ExpertUserID)

	return nil
}

// RecomputeAll rebuilds the rating cache of every expert profile.
func (s *RatingService) RecomputeAll(ctx context.Context) (int, error) {
	userIDs, err := s.profiles.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list expert profiles: %w", err)
	}

	var errs []error
	recomputed := 0
	for _, userID := range userIDs {
		if err := s.OnReviewChanged(ctx, userID); err != nil {
			errs = append(errs, fmt.Errorf("expert %d: %w", userID, err))
			continue
		}
		recomputed++
	}

	return recomputed, errors.Join(errs...)
}

// refresh recomputes the cache after a committed review change. A failure is
// only logged: the review write stands and the periodic recompute repairs the cache.
func (s *RatingService) refresh(ctx context.Context, expertUserID int64) {
	if err := s.OnReviewChanged(ctx, expertUserID); err != nil {
		s.logger.Error("Failed to refresh expert ratings",
			zap.Int64("expert_id", expertUserID),
			zap.Error(err),
		)
	}
}

func (s *RatingService) ownReview(ctx context.Context, reviewerUserID, reviewID int64) (*model.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	if review == nil {
		return nil, &NotFoundError{Entity: "review", ID: reviewID}
	}
	if review.ReviewerUserID != reviewerUserID {
		return nil, &PermissionError{Message: "no permission to change this review"}
	}
	return review, nil
}

func validateRating(rating int) error {
	if rating < model.MinRating || rating > model.MaxRating {
		return &ValidationError{Field: "rating", Message: fmt.Sprintf("must be between %d and %d", model.MinRating, model.MaxRating)}
	}
	return nil
}

// roundRating keeps one decimal digit.
func roundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}
