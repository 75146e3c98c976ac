package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

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

// CheckoutEvent is published on every checkout and payment outcome.
type CheckoutEvent struct {
	Type         string          `json:"type"`
	SessionID    string          `json:"session_id"`
	RestaurantID int             `json:"restaurant_id,omitempty"`
	OrderID      int             `json:"order_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Method       PaymentMethod   `json:"method,omitempty"`
	Attempts     int             `json:"attempts,omitempty"`
	Message      string          `json:"message,omitempty"`
	Target       string          `json:"target,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

const TargetOrderList = "/orders"

type NavigationEvent struct {
	SessionID string `json:"session_id"`
	OrderID   int    `json:"order_id"`
	Target    string `json:"target"`
	Reason    string `json:"reason"`
}
