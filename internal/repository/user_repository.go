package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/Freeeeeet/marketplace/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, telegram_id, email, name, roles, expert_application_status, created_at
		FROM users
		WHERE id = $1
	`

	var (
		user  model.User
		roles []string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Email,
		&user.Name,
		&roles,
		&user.ExpertApplicationStatus,
		&user.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	user.Roles = make([]model.Role, len(roles))
	for i, role := range roles {
		user.Roles[i] = model.Role(role)
	}

	return &user, nil
}

// TelegramChatID возвращает Telegram ID пользователя; false, если канал не привязан
func (r *UserRepository) TelegramChatID(ctx context.Context, userID int64) (int64, bool, error) {
	query := `SELECT telegram_id FROM users WHERE id = $1`

	var telegramID *int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&telegramID); err != nil {
		if base.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get telegram id: %w", err)
	}

	if telegramID == nil {
		return 0, false, nil
	}
	return *telegramID, true, nil
}

// SubmitExpertApplication переводит заявку not_applied -> pending
func (r *UserRepository) SubmitExpertApplication(ctx context.Context, userID int64) (bool, error) {
	query := `
		UPDATE users
		SET expert_application_status = $2
		WHERE id = $1 AND expert_application_status = $3
	`

	tag, err := r.pool.Exec(ctx, query, userID,
		model.ExpertApplicationPending, model.ExpertApplicationNotApplied)
	if err != nil {
		return false, fmt.Errorf("submit expert application: %w", err)
	}

	return base.Applied(tag), nil
}

// DecideExpertApplication меняет статус заявки и роль expert одним UPDATE строки users,
// поэтому роль и статус не могут разойтись
func (r *UserRepository) DecideExpertApplication(ctx context.Context, userID int64, decision model.ExpertApplicationStatus) (bool, error) {
	query := `
		UPDATE users
		SET expert_application_status = $2::text,
			roles = CASE
				WHEN $2::text = $3::text THEN array_append(array_remove(roles, $4::text), $4::text)
				ELSE array_remove(roles, $4::text)
			END
		WHERE id = $1 AND expert_application_status = $5
	`

	tag, err := r.pool.Exec(ctx, query, userID,
		decision, model.ExpertApplicationApproved, model.RoleExpert, model.ExpertApplicationPending)
	if err != nil {
		return false, fmt.Errorf("decide expert application: %w", err)
	}

	return base.Applied(tag), nil
}
