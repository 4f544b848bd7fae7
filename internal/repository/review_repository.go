package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/Freeeeeet/marketplace/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Уникальный индекс: один отзыв на пару (reviewer, expert)
const reviewUniqueConstraint = "reviews_reviewer_expert_key"

type ReviewRepository struct {
	pool *pgxpool.Pool
}

func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create создаёт отзыв; существующий отзыв не перезаписывается
func (r *ReviewRepository) Create(ctx context.Context, review *model.Review) error {
	query := `
		INSERT INTO reviews (reviewer_user_id, expert_user_id, booking_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		review.ReviewerUserID,
		review.ExpertUserID,
		review.BookingID,
		review.Rating,
		review.Comment,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err, reviewUniqueConstraint) {
			return model.ErrReviewExists
		}
		return fmt.Errorf("create review: %w", err)
	}

	return nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (*model.Review, error) {
	query := `
		SELECT id, reviewer_user_id, expert_user_id, booking_id, rating, comment, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`

	var review model.Review
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&review.ID,
		&review.ReviewerUserID,
		&review.ExpertUserID,
		&review.BookingID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get review by id: %w", err)
	}

	return &review, nil
}

func (r *ReviewRepository) Update(ctx context.Context, id int64, rating int, comment *string) error {
	query := `
		UPDATE reviews
		SET rating = $2, comment = $3, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, rating, comment)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if !base.Applied(tag) {
		return fmt.Errorf("review %d not found", id)
	}

	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// Summarize считает количество и средний рейтинг по живым отзывам эксперта
func (r *ReviewRepository) Summarize(ctx context.Context, expertUserID int64) (model.RatingSummary, error) {
	query := `
		SELECT COUNT(*), COALESCE(AVG(rating), 0)::float8
		FROM reviews
		WHERE expert_user_id = $1
	`

	var summary model.RatingSummary
	if err := r.pool.QueryRow(ctx, query, expertUserID).Scan(&summary.Quantity, &summary.Average); err != nil {
		return model.RatingSummary{}, fmt.Errorf("summarize reviews: %w", err)
	}

	return summary, nil
}
