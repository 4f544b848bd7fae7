package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/Freeeeeet/marketplace/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

const expertProfileColumns = `id, user_id, headline, bio, category, price_per_session,
	ratings_average, ratings_quantity, application_timestamp, approval_timestamp,
	rejection_reason, created_at, updated_at`

type ExpertProfileRepository struct {
	pool *pgxpool.Pool
}

func NewExpertProfileRepository(pool *pgxpool.Pool) *ExpertProfileRepository {
	return &ExpertProfileRepository{pool: pool}
}

// UpsertApplication создаёт профиль или перезаписывает данные заявки в существующем
func (r *ExpertProfileRepository) UpsertApplication(
	ctx context.Context,
	userID int64,
	app model.ExpertApplication,
	appliedAt time.Time,
) (*model.ExpertProfile, error) {
	query := `
		INSERT INTO expert_profiles (user_id, headline, bio, category, price_per_session, application_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET headline = EXCLUDED.headline,
			bio = EXCLUDED.bio,
			category = EXCLUDED.category,
			price_per_session = EXCLUDED.price_per_session,
			application_timestamp = EXCLUDED.application_timestamp,
			approval_timestamp = NULL,
			rejection_reason = NULL,
			updated_at = NOW()
		RETURNING ` + expertProfileColumns

	profile, err := scanExpertProfile(r.pool.QueryRow(ctx, query,
		userID, app.Headline, app.Bio, app.Category, app.PricePerSession, appliedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert expert profile: %w", err)
	}

	return profile, nil
}

// GetByUserID получает профиль эксперта по ID пользователя
func (r *ExpertProfileRepository) GetByUserID(ctx context.Context, userID int64) (*model.ExpertProfile, error) {
	query := `SELECT ` + expertProfileColumns + ` FROM expert_profiles WHERE user_id = $1`

	profile, err := scanExpertProfile(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get expert profile: %w", err)
	}

	return profile, nil
}

func (r *ExpertProfileRepository) MarkApproved(ctx context.Context, userID int64, approvedAt time.Time) error {
	query := `
		UPDATE expert_profiles
		SET approval_timestamp = $2, rejection_reason = NULL, updated_at = NOW()
		WHERE user_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, userID, approvedAt)
	if err != nil {
		return fmt.Errorf("mark expert profile approved: %w", err)
	}
	if !base.Applied(tag) {
		return fmt.Errorf("expert profile of user %d not found", userID)
	}

	return nil
}

func (r *ExpertProfileRepository) MarkRejected(ctx context.Context, userID int64, reason *string) error {
	query := `
		UPDATE expert_profiles
		SET approval_timestamp = NULL, rejection_reason = $2, updated_at = NOW()
		WHERE user_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, userID, reason)
	if err != nil {
		return fmt.Errorf("mark expert profile rejected: %w", err)
	}
	if !base.Applied(tag) {
		return fmt.Errorf("expert profile of user %d not found", userID)
	}

	return nil
}

// UpdateRatings записывает оба поля кэша рейтинга одним UPDATE
func (r *ExpertProfileRepository) UpdateRatings(ctx context.Context, userID int64, summary model.RatingSummary) (bool, error) {
	query := `
		UPDATE expert_profiles
		SET ratings_average = $2, ratings_quantity = $3, updated_at = NOW()
		WHERE user_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, userID, summary.Average, summary.Quantity)
	if err != nil {
		return false, fmt.Errorf("update expert ratings: %w", err)
	}

	return base.Applied(tag), nil
}

// ListUserIDs возвращает ID пользователей всех профилей экспертов
func (r *ExpertProfileRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM expert_profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list expert profiles: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expert profile user id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func scanExpertProfile(row base.Scanner) (*model.ExpertProfile, error) {
	var p model.ExpertProfile
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Headline,
		&p.Bio,
		&p.Category,
		&p.PricePerSession,
		&p.RatingsAverage,
		&p.RatingsQuantity,
		&p.ApplicationTimestamp,
		&p.ApprovalTimestamp,
		&p.RejectionReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
