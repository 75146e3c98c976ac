package service

import (
	"context"

	"overcooked-storefront/storefront-svc/internal/checkout"
	"overcooked-storefront/storefront-svc/internal/domain"
	"overcooked-storefront/storefront-svc/internal/payment"
)

// Backend is everything a browsing session asks of the platform API.
type Backend interface {
	GetRestaurant(ctx context.Context, id int) (domain.Restaurant, error)
	ListItems(ctx context.Context, restaurantID int) ([]domain.MenuItem, error)
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id int) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	DeleteOrder(ctx context.Context, id int) error
	PushMobileMoney(ctx context.Context, push domain.MobileMoneyPush) (domain.Acknowledgement, error)
	RecordPayment(ctx context.Context, rec domain.PaymentRecord) (domain.Acknowledgement, error)
}

// BackendFactory binds a backend client to a session. cookie returns the
// browser's current backend cookie.
type BackendFactory func(cookie func() string) Backend

type Publisher interface {
	Publish(ctx context.Context, event domain.CheckoutEvent) error
}

type QRGenerator interface {
	Generate(orderID int) ([]byte, error)
	Link(orderID int) string
}

// Options are shared by every session of a store.
type Options struct {
	Payment  payment.Config
	Guard    checkout.Guard
	Events   Publisher
	Currency string
}

var (
	_ payment.API       = Backend(nil)
	_ checkout.OrderAPI = Backend(nil)
)
