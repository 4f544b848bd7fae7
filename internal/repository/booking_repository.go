package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/Freeeeeet/marketplace/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, user_id, expert_id, service_id, type, status, price_at_booking, payment_id,
	scheduled_start_time, scheduled_end_time, actual_start_time, actual_end_time,
	cancellation_reason, created_at, updated_at`

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// Create создаёт новое бронирование
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (user_id, expert_id, service_id, type, status, price_at_booking,
			scheduled_start_time, scheduled_end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		booking.UserID,
		booking.ExpertID,
		booking.ServiceID,
		booking.Type,
		booking.Status,
		booking.PriceAtBooking,
		booking.ScheduledStartTime,
		booking.ScheduledEndTime,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// Transition меняет статус только если бронирование всё ещё в статусе from.
// Непустые поля upd записываются в той же строке.
func (r *BookingRepository) Transition(
	ctx context.Context,
	id int64,
	from, to model.BookingStatus,
	upd model.TransitionUpdate,
) (bool, error) {
	query := `
		UPDATE bookings
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
		return false, fmt.Errorf("transition booking %d %s -> %s: %w", id, from, to, err)
	}

	return base.Applied(tag), nil
}

// HasCompleted проверяет, что бронирование принадлежит паре пользователь/эксперт и завершено
func (r *BookingRepository) HasCompleted(ctx context.Context, userID, expertID, bookingID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE id = $1 AND user_id = $2 AND expert_id = $3 AND status = $4
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query, bookingID, userID, expertID, model.BookingStatusCompleted).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completed booking: %w", err)
	}

	return exists, nil
}

func scanBooking(row base.Scanner) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.ExpertID,
		&b.ServiceID,
		&b.Type,
		&b.Status,
		&b.PriceAtBooking,
		&b.PaymentID,
		&b.ScheduledStartTime,
		&b.ScheduledEndTime,
		&b.ActualStartTime,
		&b.ActualEndTime,
		&b.CancellationReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
