package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend exchanges prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Restaurant struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Rating  float64 `json:"rating"`
	Bio     string  `json:"bio"`
	Logo    string  `json:"logo"`
}

type MenuItem struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Available   bool            `json:"available"`
	ImageURL    string          `json:"image_url,omitempty"`
}

type CartLine struct {
	MenuItemID int `json:"menu_item_id"`
	Quantity   int `json:"quantity"`
}

// OrderLine is the snapshot of a cart line taken at checkout. Name and
// UnitPrice are copies and do not follow later menu edits.
type OrderLine struct {
	MenuItemID int             `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
}

type Order struct {
	ID                int             `json:"id"`
	RestaurantID      int             `json:"restaurant_id"`
	Lines             []OrderLine     `json:"items"`
	DeliveryAddress   string          `json:"delivery_address"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	PaymentStatus     bool            `json:"payment_status"`
	DeliveryAgentID   *int            `json:"delivery_agent_id,omitempty"`
	DeliveryTimestamp *time.Time      `json:"delivery_timestamp,omitempty"`
}

// Delivered reports whether the order has been handed over to the customer.
func (o Order) Delivered() bool {
	return o.DeliveryTimestamp != nil
}

type OrderRequest struct {
	RestaurantID    int             `json:"restaurant_id"`
	Lines           []OrderLine     `json:"items"`
	DeliveryAddress string          `json:"delivery_address"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

type PaymentMethod string

const (
	MethodMobileMoney PaymentMethod = "mobile_money"
	MethodCash        PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodMobileMoney || m == MethodCash
}

type PaymentStatus string

const (
	PaymentIdle                 PaymentStatus = "idle"
	PaymentSubmitting           PaymentStatus = "submitting"
	PaymentAwaitingConfirmation PaymentStatus = "awaiting_confirmation"
	PaymentConfirmed            PaymentStatus = "confirmed"
	PaymentFailed               PaymentStatus = "failed"
	PaymentTimedOut             PaymentStatus = "timed_out"
	PaymentCancelled            PaymentStatus = "cancelled"
)

type PaymentAttempt struct {
	OrderID     int           `json:"order_id"`
	Method      PaymentMethod `json:"method"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	Status      PaymentStatus `json:"status"`
}

type MobileMoneyPush struct {
	OrderID     int             `json:"order_id"`
	PhoneNumber string          `json:"phone_number"`
	Amount      decimal.Decimal `json:"amount"`
}

type PaymentRecord struct {
	OrderID int             `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  PaymentMethod   `json:"method"`
}

type Acknowledgement struct {
	Message string `json:"message"`
}
