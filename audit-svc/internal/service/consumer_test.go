package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"overcooked-storefront/audit-svc/internal/domain"
	"overcooked-storefront/audit-svc/internal/mocks"
)

func TestConsumer_Process(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		event          domain.CheckoutEvent
		setupMockStore func(*mocks.EventStore)
		wantErr        bool
	}{
		{
			name: "order submitted",
			event: domain.CheckoutEvent{
				Type: domain.EventOrderSubmitted, SessionID: "s1", RestaurantID: 3, OrderID: 57,
				Amount: decimal.NewFromInt(2200), Timestamp: ts,
			},
			setupMockStore: func(m *mocks.EventStore) {
				m.On("InsertEvent", mock.Anything, mock.MatchedBy(func(ev domain.CheckoutEvent) bool {
					return ev.OrderID == 57 && ev.Amount.Equal(decimal.NewFromInt(2200))
				})).Return(nil)
			},
		},
		{
			name:  "store error",
			event: domain.CheckoutEvent{Type: domain.EventPaymentConfirmed, SessionID: "s1", OrderID: 57, Timestamp: ts},
			setupMockStore: func(m *mocks.EventStore) {
				m.On("InsertEvent", mock.Anything, mock.Anything).Return(errors.New("db connection failed"))
			},
			wantErr: true,
		},
		{
			name:           "unknown type skipped",
			event:          domain.CheckoutEvent{Type: "new_review", SessionID: "s1"},
			setupMockStore: func(m *mocks.EventStore) {},
		},
		{
			name:  "missing timestamp filled in",
			event: domain.CheckoutEvent{Type: domain.EventNavigate, SessionID: "s1", OrderID: 57, Target: "/orders"},
			setupMockStore: func(m *mocks.EventStore) {
				m.On("InsertEvent", mock.Anything, mock.MatchedBy(func(ev domain.CheckoutEvent) bool {
					return !ev.Timestamp.IsZero()
				})).Return(nil)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := mocks.NewEventStore(t)
			tc.setupMockStore(store)

			c := NewConsumer(nil, store)
			err := c.Process(context.Background(), tc.event)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// scriptedReader replays messages, then blocks until the context ends.
type scriptedReader struct {
	mu       sync.Mutex
	messages []kafka.Message
	errs     []error
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.messages) > 0 {
		m := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func TestConsumer_StartSkipsBadMessagesAndStopsOnCancel(t *testing.T) {
	store := mocks.NewEventStore(t)
	stored := make(chan domain.CheckoutEvent, 2)
	store.On("InsertEvent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored <- args.Get(1).(domain.CheckoutEvent) }).
		Return(nil)

	reader := &scriptedReader{
		errs: []error{errors.New("broker unavailable")},
		messages: []kafka.Message{
			{Value: []byte(`{not json`)},
			{Value: []byte(`{"type":"payment_initiated","session_id":"s1","order_id":57,"amount":2200,"method":"mobile_money","timestamp":"2026-03-01T12:00:00Z"}`)},
			{Value: []byte(`{"type":"payment_confirmed","session_id":"s1","order_id":57,"amount":2200,"attempts":4,"timestamp":"2026-03-01T12:00:12Z"}`)},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewConsumer(reader, store).Start(ctx)
		close(done)
	}()

	first := <-stored
	second := <-stored
	assert.Equal(t, domain.EventPaymentInitiated, first.Type)
	assert.Equal(t, "mobile_money", first.Method)
	assert.Equal(t, domain.EventPaymentConfirmed, second.Type)
	assert.Equal(t, 4, second.Attempts)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "consumer did not stop after cancel")
	}
}
