package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/cart"
	"overcooked-storefront/storefront-svc/internal/checkout"
	"overcooked-storefront/storefront-svc/internal/domain"
	"overcooked-storefront/storefront-svc/internal/mocks"
)

var (
	itemA = domain.MenuItem{ID: 1, Name: "Pilau", UnitPrice: decimal.NewFromInt(500), Available: true}
	itemB = domain.MenuItem{ID: 2, Name: "Nyama Choma", UnitPrice: decimal.NewFromInt(1200), Available: true}
)

func filledCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New(10, nil)
	require.NoError(t, c.AddItem(itemA))
	require.NoError(t, c.AddItem(itemA))
	require.NoError(t, c.AddItem(itemB))
	return c
}

func TestSubmit_Success(t *testing.T) {
	api := mocks.NewOrderAPI(t)
	c := filledCart(t)
	assert.True(t, c.Total().Equal(decimal.NewFromInt(2200)))

	api.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req domain.OrderRequest) bool {
		return req.RestaurantID == 10 &&
			req.DeliveryAddress == "12 Main St" &&
			req.TotalPrice.Equal(decimal.NewFromInt(2200)) &&
			len(req.Lines) == 2 &&
			req.Lines[0].Quantity == 2 && req.Lines[0].Name == "Pilau"
	})).Return(domain.Order{ID: 57, RestaurantID: 10, TotalPrice: decimal.NewFromInt(2200)}, nil).Once()

	s := checkout.New(api, c, checkout.WithSessionID("s-1"))
	order, err := s.Submit(context.Background(), "  12 Main St ")

	require.NoError(t, err)
	assert.Equal(t, 57, order.ID)
	assert.Equal(t, checkout.Succeeded, s.Status())
	assert.True(t, c.IsEmpty(), "cart is cleared after a successful submission")

	snap := s.Snapshot()
	require.NotNil(t, snap.Order)
	assert.Equal(t, 57, snap.Order.ID)
	assert.False(t, snap.CanSubmit, "nothing left to submit")
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cart    func(t *testing.T) *cart.Cart
		address   string
		field     string
		canSubmit bool
	}{
		{name: "empty cart", cart: func(*testing.T) *cart.Cart { return cart.New(10, nil) }, address: "12 Main St", field: "cart"},
		{name: "blank address", cart: filledCart, address: "   ", field: "delivery_address", canSubmit: true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			api := mocks.NewOrderAPI(t)
			c := testCase.cart(t)
			s := checkout.New(api, c)

			assert.Equal(t, testCase.canSubmit, s.Snapshot().CanSubmit)
			_, err := s.Submit(context.Background(), testCase.address)

			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, testCase.field, ve.Field)
			assert.Equal(t, checkout.Idle, s.Status())
			api.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmit_FailureKeepsCart(t *testing.T) {
	api := mocks.NewOrderAPI(t)
	c := filledCart(t)
	api.On("CreateOrder", mock.Anything, mock.Anything).
		Return(domain.Order{}, &apperr.FetchError{Op: "create order", StatusCode: 400, Message: "Restaurant is closed"}).Once()

	s := checkout.New(api, c)
	_, err := s.Submit(context.Background(), "12 Main St")

	assert.Equal(t, "Restaurant is closed", apperr.ServerMessage(err))
	assert.Equal(t, checkout.Idle, s.Status())
	assert.Equal(t, 3, c.ItemCount())

	snap := s.Snapshot()
	assert.Equal(t, checkout.Failed, snap.LastOutcome)
	assert.Equal(t, "Restaurant is closed", snap.LastError)

	api.On("CreateOrder", mock.Anything, mock.Anything).Return(domain.Order{ID: 58}, nil).Once()
	order, err := s.Submit(context.Background(), "12 Main St")
	require.NoError(t, err)
	assert.Equal(t, 58, order.ID)
}

func TestSubmit_DoubleSubmitIssuesOneRequest(t *testing.T) {
	api := mocks.NewOrderAPI(t)
	c := filledCart(t)

	started := make(chan struct{})
	release := make(chan struct{})
	api.On("CreateOrder", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(domain.Order{ID: 57}, nil).Once()

	s := checkout.New(api, c)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.Submit(context.Background(), "12 Main St")
	}()

	<-started
	assert.Equal(t, checkout.Submitting, s.Status())

	_, err := s.Submit(context.Background(), "12 Main St")
	assert.ErrorIs(t, err, apperr.ErrSubmitInFlight)

	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	api.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestSubmit_Guard(t *testing.T) {
	t.Run("claimed elsewhere", func(t *testing.T) {
		api := mocks.NewOrderAPI(t)
		guard := mocks.NewGuard(t)
		guard.On("Claim", mock.Anything, "s-1:10:0").Return(false, nil).Once()

		s := checkout.New(api, filledCart(t), checkout.WithGuard(guard), checkout.WithSessionID("s-1"))
		_, err := s.Submit(context.Background(), "12 Main St")

		assert.ErrorIs(t, err, apperr.ErrSubmitInFlight)
		assert.Equal(t, checkout.Idle, s.Status())
		api.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("released on failure", func(t *testing.T) {
		api := mocks.NewOrderAPI(t)
		guard := mocks.NewGuard(t)
		guard.On("Claim", mock.Anything, "s-1:10:0").Return(true, nil).Once()
		guard.On("Release", mock.Anything, "s-1:10:0").Return(nil).Once()
		api.On("CreateOrder", mock.Anything, mock.Anything).Return(domain.Order{}, errors.New("boom")).Once()

		s := checkout.New(api, filledCart(t), checkout.WithGuard(guard), checkout.WithSessionID("s-1"))
		_, err := s.Submit(context.Background(), "12 Main St")
		assert.Error(t, err)
	})

	t.Run("guard outage does not block checkout", func(t *testing.T) {
		api := mocks.NewOrderAPI(t)
		guard := mocks.NewGuard(t)
		guard.On("Claim", mock.Anything, mock.Anything).Return(false, errors.New("redis down")).Once()
		api.On("CreateOrder", mock.Anything, mock.Anything).Return(domain.Order{ID: 57}, nil).Once()

		s := checkout.New(api, filledCart(t), checkout.WithGuard(guard))
		order, err := s.Submit(context.Background(), "12 Main St")
		require.NoError(t, err)
		assert.Equal(t, 57, order.ID)
	})
}

func TestSubmit_PublishesEvents(t *testing.T) {
	api := mocks.NewOrderAPI(t)
	events := mocks.NewPublisher(t)
	api.On("CreateOrder", mock.Anything, mock.Anything).Return(domain.Order{ID: 57}, nil).Once()
	events.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.CheckoutEvent) bool {
		return e.Type == domain.EventOrderSubmitted && e.OrderID == 57 && e.SessionID == "s-1" &&
			e.Amount.Equal(decimal.NewFromInt(2200))
	})).Return(nil).Once()

	s := checkout.New(api, filledCart(t), checkout.WithPublisher(events), checkout.WithSessionID("s-1"))
	_, err := s.Submit(context.Background(), "12 Main St")
	require.NoError(t, err)
}

func TestSubmit_SnapshotSurvivesMenuChanges(t *testing.T) {
	api := mocks.NewOrderAPI(t)
	c := filledCart(t)

	var captured domain.OrderRequest
	api.On("CreateOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(domain.OrderRequest) }).
		Return(domain.Order{ID: 57}, nil).Once()

	s := checkout.New(api, c)
	_, err := s.Submit(context.Background(), "12 Main St")
	require.NoError(t, err)

	itemA.Name = "Renamed"
	itemA.UnitPrice = decimal.NewFromInt(999)
	t.Cleanup(func() {
		itemA.Name = "Pilau"
		itemA.UnitPrice = decimal.NewFromInt(500)
	})

	assert.Equal(t, "Pilau", captured.Lines[0].Name)
	assert.True(t, captured.Lines[0].UnitPrice.Equal(decimal.NewFromInt(500)))
}

func TestSubmit_ResponseWithoutOrderIDFails(t *testing.T) {
	api := mocks.NewOrderAPI(t)
	guard := mocks.NewGuard(t)
	c := filledCart(t)
	guard.On("Claim", mock.Anything, "s-1:10:0").Return(true, nil).Once()
	guard.On("Release", mock.Anything, "s-1:10:0").Return(nil).Once()
	api.On("CreateOrder", mock.Anything, mock.Anything).Return(domain.Order{}, nil).Once()

	s := checkout.New(api, c, checkout.WithGuard(guard), checkout.WithSessionID("s-1"))
	order, err := s.Submit(context.Background(), "12 Main St")

	var fe *apperr.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "fetch", apperr.Kind(err))
	assert.Zero(t, order.ID)
	assert.Equal(t, checkout.Idle, s.Status())
	assert.Equal(t, checkout.Failed, s.Snapshot().LastOutcome)
	assert.Nil(t, s.Snapshot().Order)
	assert.Equal(t, 3, c.ItemCount(), "cart is kept when no order was created")
}

func TestSubmit_RetryAfterFailedGuardRelease(t *testing.T) {
	api := mocks.NewOrderAPI(t)
	guard := mocks.NewGuard(t)
	c := filledCart(t)

	guard.On("Claim", mock.Anything, "s-1:10:0").Return(true, nil).Once()
	guard.On("Release", mock.Anything, "s-1:10:0").Return(errors.New("redis timeout")).Once()
	api.On("CreateOrder", mock.Anything, mock.Anything).
		Return(domain.Order{}, &apperr.FetchError{Op: "create order", StatusCode: 503, Message: "Try again"}).Once()

	s := checkout.New(api, c, checkout.WithGuard(guard), checkout.WithSessionID("s-1"))
	_, err := s.Submit(context.Background(), "12 Main St")
	require.Error(t, err)
	assert.Equal(t, checkout.Idle, s.Status())

	// The stale marker is ours; the retry must not be refused by it.
	api.On("CreateOrder", mock.Anything, mock.Anything).Return(domain.Order{ID: 58}, nil).Once()
	order, err := s.Submit(context.Background(), "12 Main St")
	require.NoError(t, err)
	assert.Equal(t, 58, order.ID)

	guard.AssertNumberOfCalls(t, "Claim", 1)
	api.AssertNumberOfCalls(t, "CreateOrder", 2)
}
