package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/domain"
	"overcooked-storefront/storefront-svc/internal/payment"
	"overcooked-storefront/storefront-svc/internal/service"
)

func TestStore_GetOrCreate(t *testing.T) {
	store := newStore(t, newFakeBackend(), fast)

	sess, created := store.GetOrCreate("", "sessionid=abc")
	assert.True(t, created)
	assert.NotEmpty(t, sess.ID)

	again, created := store.GetOrCreate(sess.ID, "sessionid=new")
	assert.False(t, created)
	assert.Same(t, sess, again)
	assert.Equal(t, "sessionid=new", sess.Cookie())

	other, created := store.GetOrCreate("unknown", "")
	assert.True(t, created)
	assert.NotEqual(t, sess.ID, other.ID)
	assert.Equal(t, 2, store.Len())

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
}

func TestStore_SweepClosesIdleSessions(t *testing.T) {
	be := newFakeBackend()
	store := newStore(t, be, payment.Config{PollInterval: 5 * time.Millisecond})

	idle := store.Create("")
	fillCart(t, idle)
	_, err := idle.Checkout(context.Background(), "12 Main St")
	require.NoError(t, err)
	_, err = idle.StartPayment(context.Background(), 57, domain.MethodMobileMoney, "254712345678")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	active := store.Create("")

	assert.Equal(t, 1, store.Sweep(10*time.Millisecond))
	assert.Equal(t, 1, store.Len())

	_, err = store.Get(active.ID)
	assert.NoError(t, err)
	_, err = store.Get(idle.ID)
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)

	n := be.polls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, be.polls.Load(), "no poll outlives its session")

	_, err = idle.StartPayment(context.Background(), 57, domain.MethodCash, "")
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
}

func TestStore_Remove(t *testing.T) {
	store := newStore(t, newFakeBackend(), fast)
	sess := store.Create("")

	store.Remove(sess.ID)
	store.Remove(sess.ID)
	assert.Zero(t, store.Len())
}

func TestReceiptQR(t *testing.T) {
	qr := service.ReceiptQR{PublicURL: "https://shop.example.com/"}

	assert.Equal(t, "https://shop.example.com/orders/57", qr.Link(57))

	png, err := qr.Generate(57)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
