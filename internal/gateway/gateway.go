// Package gateway holds the gateway-independent types shared by the payment
// engine and the hosted payment gateway clients.
package gateway

import (
	"encoding/json"
	"errors"
)

// ErrRejected is returned when the gateway refuses to open a payment session.
var ErrRejected = errors.New("payment session rejected by gateway")

type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
	Country string
}

type SessionRequest struct {
	TransactionID   string
	Amount          int64 // в минимальных единицах валюты
	Currency        string
	SuccessURL      string
	FailURL         string
	CancelURL       string
	NotificationURL string
	Customer        Customer
	ProductName     string
	ProductCategory string
}

type Session struct {
	RedirectURL string
	SessionKey  string
}

// Outcome is the classification of a gateway status code.
// OutcomeUnrecognized is the only variant ambiguous input may map to.
type Outcome int

const (
	OutcomeUnrecognized Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unrecognized"
	}
}

// Notification is an inbound asynchronous gateway notification (IPN).
type Notification struct {
	TransactionID string
	Status        string
	ValidationID  string
	Outcome       Outcome
	Raw           map[string]string
}

// RawJSON returns the payload as stored for audit.
func (n Notification) RawJSON() (json.RawMessage, error) {
	if n.Raw == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(n.Raw)
}
