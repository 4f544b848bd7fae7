package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/Freeeeeet/marketplace/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

const starWishColumns = `id, user_id, expert_id, service_id, type, status, price_at_booking, payment_id,
	scheduled_start_time, scheduled_end_time, actual_start_time, actual_end_time,
	cancellation_reason, created_at, updated_at`

type StarWishRepository struct {
	pool *pgxpool.Pool
}

func NewStarWishRepository(pool *pgxpool.Pool) *StarWishRepository {
	return &StarWishRepository{pool: pool}
}

func (r *StarWishRepository) Create(ctx context.Context, request *model.StarWishRequest) error {
	query := `
		INSERT INTO star_wish_requests (user_id, expert_id, service_id, type, status, price_at_booking,
			scheduled_start_time, scheduled_end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		request.UserID,
		request.ExpertID,
		request.ServiceID,
		request.Type,
		request.Status,
		request.PriceAtBooking,
		request.ScheduledStartTime,
		request.ScheduledEndTime,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create star wish request: %w", err)
	}

	return nil
}

func (r *StarWishRepository) GetByID(ctx context.Context, id int64) (*model.StarWishRequest, error) {
	query := `SELECT ` + starWishColumns + ` FROM star_wish_requests WHERE id = $1`

	var req model.StarWishRequest
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.UserID,
		&req.ExpertID,
		&req.ServiceID,
		&req.Type,
		&req.Status,
		&req.PriceAtBooking,
		&req.PaymentID,
		&req.ScheduledStartTime,
		&req.ScheduledEndTime,
		&req.ActualStartTime,
		&req.ActualEndTime,
		&req.CancellationReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get star wish request by id: %w", err)
	}

	return &req, nil
}

// Transition аналогичен BookingRepository.Transition
func (r *StarWishRepository) Transition(
	ctx context.Context,
	id int64,
	from, to model.StarWishStatus,
	upd model.TransitionUpdate,
) (bool, error) {
	query := `
		UPDATE star_wish_requests
		SET status = $3,
			payment_id = COALESCE($4, payment_id),
			cancellation_reason = COALESCE($5, cancellation_reason),
			actual_start_time = COALESCE($6, actual_start_time),
			actual_end_time = COALESCE($7, actual_end_time),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := r.pool.Exec(ctx, query, id, from, to,
		upd.PaymentID, upd.CancellationReason, upd.ActualStartTime, upd.ActualEndTime)
	if err != nil {
		return false, fmt.Errorf("transition star wish request %d %s -> %s: %w", id, from, to, err)
	}

	return base.Applied(tag), nil
}
