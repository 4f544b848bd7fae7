package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/Freeeeeet/marketplace/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `p.id, p.payer_user_id, p.payee_expert_id, p.amount, p.currency, p.status,
	p.gateway_name, p.gateway_transaction_id, p.gateway_validation_id,
	p.related_booking_id, p.related_star_wish_id, p.raw_gateway_payload, p.created_at, p.updated_at`

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create сохраняет новый платёж; gateway_transaction_id уникален
func (r *PaymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	query := `
		INSERT INTO payments (payer_user_id, payee_expert_id, amount, currency, status,
			gateway_name, gateway_transaction_id, related_booking_id, related_star_wish_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		payment.PayerUserID,
		payment.PayeeExpertID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.GatewayName,
		payment.GatewayTransactionID,
		payment.RelatedBookingID,
		payment.RelatedStarWishID,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

// GetByID получает платёж по ID
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.id = $1`

	payment, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by id: %w", err)
	}

	return payment, nil
}

// GetByTransactionID получает платёж по ID транзакции шлюза
func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.gateway_transaction_id = $1`

	payment, err := scanPayment(r.pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by transaction id: %w", err)
	}

	return payment, nil
}

// CompletePending переводит платёж из pending в конечный статус одним условным UPDATE.
// Из параллельных доставок одного уведомления строку обновит только одна.
func (r *PaymentRepository) CompletePending(
	ctx context.Context,
	transactionID string,
	status model.PaymentStatus,
	validationID *string,
	raw json.RawMessage,
) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2,
			gateway_validation_id = COALESCE($3, gateway_validation_id),
			raw_gateway_payload = COALESCE($4::jsonb, raw_gateway_payload),
			updated_at = NOW()
		WHERE gateway_transaction_id = $1 AND status = $5
	`

	tag, err := r.pool.Exec(ctx, query, transactionID, status, validationID, raw, model.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("complete payment %s: %w", transactionID, err)
	}

	return base.Applied(tag), nil
}

// RecordPayload сохраняет тело информационного уведомления, статус не меняется
func (r *PaymentRepository) RecordPayload(ctx context.Context, transactionID string, raw json.RawMessage) error {
	query := `
		UPDATE payments
		SET raw_gateway_payload = $2::jsonb, updated_at = NOW()
		WHERE gateway_transaction_id = $1 AND status = $3
	`

	if _, err := r.pool.Exec(ctx, query, transactionID, raw, model.PaymentStatusPending); err != nil {
		return fmt.Errorf("record payment payload %s: %w", transactionID, err)
	}

	return nil
}

// ListSucceededAwaitingCascade находит успешные платежи, чья сущность всё ещё ждёт оплаты
func (r *PaymentRepository) ListSucceededAwaitingCascade(ctx context.Context, limit int) ([]*model.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments p
		LEFT JOIN bookings b ON b.id = p.related_booking_id
		LEFT JOIN star_wish_requests w ON w.id = p.related_star_wish_id
		WHERE p.status = $1
			AND (b.status = $2 OR w.status = $3)
		ORDER BY p.updated_at
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query,
		model.PaymentStatusSucceeded,
		model.BookingStatusPendingPayment,
		model.StarWishStatusPendingPayment,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments awaiting cascade: %w", err)
	}
	defer rows.Close()

	var payments []*model.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

func scanPayment(row base.Scanner) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.PayerUserID,
		&p.PayeeExpertID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.GatewayName,
		&p.GatewayTransactionID,
		&p.GatewayValidationID,
		&p.RelatedBookingID,
		&p.RelatedStarWishID,
		&p.RawGatewayPayload,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
