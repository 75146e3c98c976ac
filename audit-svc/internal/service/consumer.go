package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"overcooked-storefront/audit-svc/internal/domain"
)

type Consumer struct {
	Reader MessageReader
	Store  EventStore
}

func NewConsumer(reader MessageReader, store EventStore) *Consumer {
	return &Consumer{
		Reader: reader,
		Store:  store,
	}
}

// Start reads checkout events until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	log.Println("Starting Audit Service consumer...")
	for {
		message, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("Audit Service consumer stopped")
				return
			}
			log.Printf("Error reading message: %v", err)
			continue
		}

		var ev domain.CheckoutEvent
		if err := json.Unmarshal(message.Value, &ev); err != nil {
			log.Printf("Error unmarshaling message at offset %d: %v", message.Offset, err)
			continue
		}

		if err := c.Process(ctx, ev); err != nil {
			log.Printf("Error storing %s event for order %d: %v", ev.Type, ev.OrderID, err)
		}
	}
}

// Process stores one event. Unknown event types are skipped.
func (c *Consumer) Process(ctx context.Context, ev domain.CheckoutEvent) error {
	if !ev.Known() {
		log.Printf("Skipping unknown event type %q", ev.Type)
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := c.Store.InsertEvent(ctx, ev); err != nil {
		return err
	}
	log.Printf("Stored %s event: session=%s order=%d", ev.Type, ev.SessionID, ev.OrderID)
	return nil
}
