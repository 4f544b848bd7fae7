package model

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is one attempt to collect money for a booking or a star wish request.
type Payment struct {
	ID                   int64           `json:"id"`
	PayerUserID          int64           `json:"payer_user_id"`
	PayeeExpertID        *int64          `json:"payee_expert_id"`
	Amount               int64           `json:"amount"` // в минимальных единицах валюты
	Currency             string          `json:"currency"`
	Status               PaymentStatus   `json:"status"`
	GatewayName          string          `json:"gateway_name"`
	GatewayTransactionID string          `json:"gateway_transaction_id"`
	GatewayValidationID  *string         `json:"gateway_validation_id"`
	RelatedBookingID     *int64          `json:"related_booking_id"`
	RelatedStarWishID    *int64          `json:"related_star_wish_id"`
	RawGatewayPayload    json.RawMessage `json:"raw_gateway_payload"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// IsPending checks if payment still waits for the gateway
func (p *Payment) IsPending() bool {
	return p.Status == PaymentStatusPending
}

// PaymentTarget references exactly one payable entity.
type PaymentTarget struct {
	BookingID  *int64
	StarWishID *int64
}

// Valid reports whether exactly one reference is set.
func (t PaymentTarget) Valid() bool {
	return (t.BookingID == nil) != (t.StarWishID == nil)
}
