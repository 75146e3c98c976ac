package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	EventOrderSubmitted    = "order_submitted"
	EventOrderSubmitFailed = "order_submit_failed"
	EventPaymentInitiated  = "payment_initiated"
	EventPaymentConfirmed  = "payment_confirmed"
	EventPaymentFailed     = "payment_failed"
	EventPaymentTimedOut   = "payment_timed_out"
	EventPaymentCancelled  = "payment_cancelled"
	EventNavigate          = "navigate"
)

var knownTypes = map[string]bool{
	EventOrderSubmitted:    true,
	EventOrderSubmitFailed: true,
	EventPaymentInitiated:  true,
	EventPaymentConfirmed:  true,
	EventPaymentFailed:     true,
	EventPaymentTimedOut:   true,
	EventPaymentCancelled:  true,
	EventNavigate:          true,
}

// CheckoutEvent is the message the storefront publishes on the
// checkout-events topic.
type CheckoutEvent struct {
	Type         string          `json:"type"`
	SessionID    string          `json:"session_id"`
	RestaurantID int             `json:"restaurant_id,omitempty"`
	OrderID      int             `json:"order_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method,omitempty"`
	Attempts     int             `json:"attempts,omitempty"`
	Message      string          `json:"message,omitempty"`
	Target       string          `json:"target,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

func (e CheckoutEvent) Known() bool {
	return knownTypes[e.Type]
}

// StoredEvent is the read model served for an order's trail. It carries no
// session id: the trail is readable by anyone who can see the order.
type StoredEvent struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	RestaurantID int             `json:"restaurant_id,omitempty"`
	OrderID      int             `json:"order_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method,omitempty"`
	Attempts     int             `json:"attempts,omitempty"`
	Message      string          `json:"message,omitempty"`
	Target       string          `json:"target,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	ReceivedAt   time.Time       `json:"received_at"`
}
