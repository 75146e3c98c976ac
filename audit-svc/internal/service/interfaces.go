package service

import (
	"context"

	"github.com/segmentio/kafka-go"

	"overcooked-storefront/audit-svc/internal/domain"
	"overcooked-storefront/audit-svc/internal/storage"
)

type EventStore interface {
	InsertEvent(ctx context.Context, ev domain.CheckoutEvent) error
	ListOrderEvents(ctx context.Context, orderID int) ([]domain.StoredEvent, error)
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type ConsumerInterface interface {
	Start(ctx context.Context)
	Process(ctx context.Context, ev domain.CheckoutEvent) error
}

var (
	_ EventStore        = (*storage.PostgresRepository)(nil)
	_ MessageReader     = (*kafka.Reader)(nil)
	_ ConsumerInterface = (*Consumer)(nil)
)
