package payment_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"overcooked-storefront/storefront-svc/internal/cart"
	"overcooked-storefront/storefront-svc/internal/checkout"
	"overcooked-storefront/storefront-svc/internal/domain"
	"overcooked-storefront/storefront-svc/internal/mocks"
	"overcooked-storefront/storefront-svc/internal/payment"
)

// placeOrder runs cart -> checkout for {A x2 @ 500, B x1 @ 1200} and returns
// the order the backend created.
func placeOrder(t *testing.T) domain.Order {
	t.Helper()

	c := cart.New(3, nil)
	itemA := domain.MenuItem{ID: 1, Name: "A", UnitPrice: decimal.NewFromInt(500), Available: true}
	itemB := domain.MenuItem{ID: 2, Name: "B", UnitPrice: decimal.NewFromInt(1200), Available: true}
	require.NoError(t, c.AddItem(itemA))
	require.NoError(t, c.AddItem(itemA))
	require.NoError(t, c.AddItem(itemB))
	require.True(t, c.Total().Equal(decimal.NewFromInt(2200)))

	orders := mocks.NewOrderAPI(t)
	orders.On("CreateOrder", mock.Anything, mock.Anything).
		Return(func(_ context.Context, req domain.OrderRequest) (domain.Order, error) {
			return domain.Order{
				ID:              57,
				RestaurantID:    req.RestaurantID,
				Lines:           req.Lines,
				DeliveryAddress: req.DeliveryAddress,
				TotalPrice:      req.TotalPrice,
			}, nil
		}).Once()

	order, err := checkout.New(orders, c).Submit(context.Background(), "12 Main St")
	require.NoError(t, err)
	require.True(t, c.IsEmpty())
	return order
}

func TestFlow_Cash(t *testing.T) {
	order := placeOrder(t)
	assert.Equal(t, 57, order.ID)

	api := &fakeAPI{}
	c := payment.New(api, order.ID, order.TotalPrice, fast)
	t.Cleanup(c.Cancel)
	require.NoError(t, c.ChooseMethod(domain.MethodCash, ""))

	snap, err := c.Initiate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentConfirmed, snap.Status)
	assert.EqualValues(t, 1, api.records.Load())
	assert.EqualValues(t, 0, api.pushes.Load())
	assert.EqualValues(t, 0, api.polls.Load())
	assert.Equal(t, 57, api.lastRecord.OrderID)
	assert.Equal(t, domain.MethodCash, api.lastRecord.Method)
	assert.True(t, api.lastRecord.Amount.Equal(decimal.NewFromInt(2200)))
}

func TestFlow_MobileMoney(t *testing.T) {
	order := placeOrder(t)

	api := &fakeAPI{paidOn: 2}
	c := payment.New(api, order.ID, order.TotalPrice, fast)
	t.Cleanup(c.Cancel)
	require.NoError(t, c.ChooseMethod(domain.MethodMobileMoney, "254712345678"))

	snap, err := c.Initiate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentAwaitingConfirmation, snap.Status)

	c.Wait()

	assert.Equal(t, domain.PaymentConfirmed, c.Status())
	assert.EqualValues(t, 1, api.pushes.Load())
	assert.EqualValues(t, 2, api.polls.Load(), "no attempt 3")
	assert.Equal(t, domain.MobileMoneyPush{OrderID: 57, PhoneNumber: "254712345678", Amount: order.TotalPrice}, api.lastPush)
}
