package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/marketplace/internal/gateway"
	"github.com/Freeeeeet/marketplace/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const callbackPrefix = "/api/v1/payments"

type PaymentService struct {
	payments          PaymentRepository
	bookings          BookingRepository
	starWishes        StarWishRepository
	bookingLifecycle  PaymentCascade
	starWishLifecycle PaymentCascade
	gateway           PaymentGateway
	notifier          Notifier
	callbackBaseURL   string
	newTransactionID  func() string
	logger            *zap.Logger
}

func NewPaymentService(
	payments PaymentRepository,
	bookings BookingRepository,
	starWishes StarWishRepository,
	bookingLifecycle PaymentCascade,
	starWishLifecycle PaymentCascade,
	paymentGateway PaymentGateway,
	notifier Notifier,
	callbackBaseURL string,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:          payments,
		bookings:          bookings,
		starWishes:        starWishes,
		bookingLifecycle:  bookingLifecycle,
		starWishLifecycle: starWishLifecycle,
		gateway:           paymentGateway,
		notifier:          notifier,
		callbackBaseURL:   strings.TrimRight(callbackBaseURL, "/"),
		newTransactionID:  uuid.NewString,
		logger:            logger,
	}
}

type InitiatePaymentInput struct {
	PayerUserID int64
	Amount      int64
	Currency    string
	Target      model.PaymentTarget
	Customer    gateway.Customer
}

type InitiatePaymentResult struct {
	PaymentID          int64
	TransactionID      string
	GatewayRedirectURL string
}

// payable describes the entity a payment is collected for.
type payable struct {
	userID   int64
	expertID int64
	product  string
}

// InitiatePayment создаёт pending платёж и открывает сессию оплаты в шлюзе
func (s *PaymentService) InitiatePayment(ctx context.Context, in InitiatePaymentInput) (*InitiatePaymentResult, error) {
	if in.Amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "must be positive"}
	}
	if !in.Target.Valid() {
		return nil, &ValidationError{Field: "target", Message: "exactly one of booking or star wish must be set"}
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		return nil, &ValidationError{Field: "currency", Message: "is required"}
	}

	target, err := s.loadPayable(ctx, in.Target)
	if err != nil {
		return nil, err
	}

	if target.userID != in.PayerUserID {
		return nil, &PermissionError{Message: "only the requester can pay for this " + target.product}
	}

	// Платёж сохраняется до обращения к шлюзу: при падении между шагами
	// остаётся pending запись, а не потерянная внешняя сессия
	transactionID := s.newTransactionID()
	payment := &model.Payment{
		PayerUserID:          in.PayerUserID,
		PayeeExpertID:        &target.expertID,
		Amount:               in.Amount,
		Currency:             currency,
		Status:               model.PaymentStatusPending,
		GatewayName:          s.gateway.Name(),
		GatewayTransactionID: transactionID,
		RelatedBookingID:     in.Target.BookingID,
		RelatedStarWishID:    in.Target.StarWishID,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	session, err := s.gateway.InitiateSession(ctx, gateway.SessionRequest{
		TransactionID:   transactionID,
		Amount:          in.Amount,
		Currency:        currency,
		SuccessURL:      s.callbackURL("success", transactionID),
		FailURL:         s.callbackURL("fail", transactionID),
		CancelURL:       s.callbackURL("cancel", transactionID),
		NotificationURL: s.callbackBaseURL + callbackPrefix + "/ipn",
		Customer:        in.Customer,
		ProductName:     target.product,
		ProductCategory: "service",
	})
	if err != nil {
		if _, markErr := s.payments.CompletePending(ctx, transactionID, model.PaymentStatusFailed, nil, nil); markErr != nil {
			s.logger.Error("Failed to mark payment as failed after gateway rejection",
				zap.String("transaction_id", transactionID),
				zap.Error(markErr),
			)
		}

		s.logger.Warn("Payment gateway rejected session",
			zap.Int64("payment_id", payment.ID),
			zap.String("transaction_id", transactionID),
			zap.Error(err),
		)

		return nil, &ExternalGatewayError{Gateway: s.gateway.Name(), Err: err}
	}

	s.logger.Info("Payment initiated",
		zap.Int64("payment_id", payment.ID),
		zap.String("transaction_id", transactionID),
		zap.Int64("payer_id", in.PayerUserID),
		zap.Int64("amount", in.Amount),
		zap.String("currency", currency),
	)

	return &InitiatePaymentResult{
		PaymentID:          payment.ID,
		TransactionID:      transactionID,
		GatewayRedirectURL: session.RedirectURL,
	}, nil
}

func (s *PaymentService) loadPayable(ctx context.Context, target model.PaymentTarget) (*payable, error) {
	if target.BookingID != nil {
		booking, err := s.bookings.GetByID(ctx, *target.BookingID)
		if err != nil {
			return nil, fmt.Errorf("get booking: %w", err)
		}
		if booking == nil {
			return nil, &NotFoundError{Entity: "booking", ID: *target.BookingID}
		}
		if booking.Status != model.BookingStatusPendingPayment {
			return nil, &InvalidStateError{
				Entity:  "booking",
				ID:      booking.ID,
				Action:  "pay for",
				Current: string(booking.Status),
				Allowed: []string{string(model.BookingStatusPendingPayment)},
			}
		}
		return &payable{userID: booking.UserID, expertID: booking.ExpertID, product: "booking"}, nil
	}

	request, err := s.starWishes.GetByID(ctx, *target.StarWishID)
	if err != nil {
		return nil, fmt.Errorf("get star wish request: %w", err)
	}
	if request == nil {
		return nil, &NotFoundError{Entity: "star wish request", ID: *target.StarWishID}
	}
	if request.Status != model.StarWishStatusPendingPayment {
		return nil, &InvalidStateError{
			Entity:  "star wish request",
			ID:      request.ID,
			Action:  "pay for",
			Current: string(request.Status),
			Allowed: []string{string(model.StarWishStatusPendingPayment)},
		}
	}
	return &payable{userID: request.UserID, expertID: request.ExpertID, product: "star wish request"}, nil
}

func (s *PaymentService) callbackURL(outcome, transactionID string) string {
	return fmt.Sprintf("%s%s/%s/%s", s.callbackBaseURL, callbackPrefix, outcome, transactionID)
}

// HandleGatewayNotification applies an IPN to its payment. Duplicate, late and
// unknown notifications return nil without changing state.
func (s *PaymentService) HandleGatewayNotification(ctx context.Context, n gateway.Notification) error {
	if n.TransactionID == "" {
		return &ValidationError{Field: "tran_id", Message: "is required"}
	}

	log := s.logger.With(
		zap.String("transaction_id", n.TransactionID),
		zap.String("gateway_status", n.Status),
		zap.Stringer("outcome", n.Outcome),
	)

	payment, err := s.payments.GetByTransactionID(ctx, n.TransactionID)
	if err != nil {
		return fmt.Errorf("get payment: %w", err)
	}

	// Платёж создаётся только в InitiatePayment, не из уведомления
	if payment == nil {
		log.Warn("Notification for unknown transaction discarded")
		return nil
	}

	if !payment.IsPending() {
		log.Debug("Duplicate notification ignored", zap.String("payment_status", string(payment.Status)))
		return nil
	}

	raw, err := n.RawJSON()
	if err != nil {
		return fmt.Errorf("encode gateway payload: %w", err)
	}

	var (
		status       model.PaymentStatus
		validationID *string
	)

	switch {
	case n.Outcome == gateway.OutcomeSuccess && n.ValidationID != "":
		status = model.PaymentStatusSucceeded
		validationID = &n.ValidationID
	case n.Outcome == gateway.OutcomeFailure:
		status = model.PaymentStatusFailed
	default:
		if err := s.payments.RecordPayload(ctx, n.TransactionID, raw); err != nil {
			return fmt.Errorf("record gateway payload: %w", err)
		}
		log.Info("Informational notification recorded, payment stays pending")
		return nil
	}

	applied, err := s.payments.CompletePending(ctx, n.TransactionID, status, validationID, raw)
	if err != nil {
		return fmt.Errorf("complete payment: %w", err)
	}

	// Параллельная доставка того же уведомления уже перевела платёж
	if !applied {
		log.Debug("Concurrent duplicate notification ignored")
		return nil
	}

	payment.Status = status
	payment.GatewayValidationID = validationID
	payment.RawGatewayPayload = raw

	log.Info("Payment completed", zap.Int64("payment_id", payment.ID), zap.String("status", string(status)))

	if err := s.ApplyCascade(ctx, payment); err != nil {
		// Платёж уже зафиксирован; каскад повторит сверка
		log.Error("Payment cascade deferred to reconciliation", zap.Int64("payment_id", payment.ID), zap.Error(err))
		return nil
	}

	if status == model.PaymentStatusSucceeded {
		s.notifier.Notify(ctx, model.Notification{
			RecipientUserID: payment.PayerUserID,
			Type:            model.NotificationPaymentSucceeded,
			Message:         fmt.Sprintf("Payment of %s %s received.", formatMinor(payment.Amount), payment.Currency),
		})
	}

	return nil
}

// ApplyCascade propagates a terminal payment status to the paid entity.
// Safe to call repeatedly for the same payment.
func (s *PaymentService) ApplyCascade(ctx context.Context, payment *model.Payment) error {
	var (
		cascade  PaymentCascade
		targetID int64
	)

	switch {
	case payment.RelatedBookingID != nil:
		cascade, targetID = s.bookingLifecycle, *payment.RelatedBookingID
	case payment.RelatedStarWishID != nil:
		cascade, targetID = s.starWishLifecycle, *payment.RelatedStarWishID
	default:
		return fmt.Errorf("payment %d has no related entity", payment.ID)
	}

	switch payment.Status {
	case model.PaymentStatusSucceeded:
		return cascade.OnPaymentSucceeded(ctx, targetID, payment.ID)
	case model.PaymentStatusFailed:
		return cascade.OnPaymentFailed(ctx, targetID, payment.ID)
	default:
		return nil
	}
}

// ReconcileCascades re-applies the cascade for succeeded payments whose target
// is still waiting for payment. Returns the number of payments processed.
func (s *PaymentService) ReconcileCascades(ctx context.Context, batchSize int) (int, error) {
	payments, err := s.payments.ListSucceededAwaitingCascade(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("list payments awaiting cascade: %w", err)
	}

	var errs []error
	processed := 0
	for _, payment := range payments {
		if err := s.ApplyCascade(ctx, payment); err != nil {
			errs = append(errs, fmt.Errorf("payment %d: %w", payment.ID, err))
			continue
		}
		processed++
	}

	if processed > 0 {
		s.logger.Info("Reconciled payment cascades", zap.Int("count", processed))
	}

	return processed, errors.Join(errs...)
}

// GetPayment получает платёж по ID
func (s *PaymentService) GetPayment(ctx context.Context, id int64) (*model.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment == nil {
		return nil, &NotFoundError{Entity: "payment", ID: id}
	}
	return payment, nil
}

// GetPaymentByTransactionID получает платёж по ID транзакции шлюза
func (s *PaymentService) GetPaymentByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	payment, err := s.payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if payment == nil {
		return nil, &NotFoundError{Entity: "payment", ID: transactionID}
	}
	return payment, nil
}

func formatMinor(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}
