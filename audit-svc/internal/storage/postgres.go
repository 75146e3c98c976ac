package storage

import (
	"context"
	"database/sql"

	"overcooked-storefront/audit-svc/internal/domain"
)

type PostgresRepository struct {
	DB *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{DB: db}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkout_events (
			id            BIGSERIAL PRIMARY KEY,
			type          TEXT NOT NULL,
			session_id    TEXT NOT NULL,
			restaurant_id INTEGER NOT NULL DEFAULT 0,
			order_id      INTEGER NOT NULL DEFAULT 0,
			amount        NUMERIC(12, 2) NOT NULL DEFAULT 0,
			method        TEXT NOT NULL DEFAULT '',
			attempts      INTEGER NOT NULL DEFAULT 0,
			message       TEXT NOT NULL DEFAULT '',
			target        TEXT NOT NULL DEFAULT '',
			occurred_at   TIMESTAMPTZ NOT NULL,
			received_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS checkout_events_order_id_idx ON checkout_events (order_id);
	`)
	return err
}

func (r *PostgresRepository) InsertEvent(ctx context.Context, ev domain.CheckoutEvent) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO checkout_events
			(type, session_id, restaurant_id, order_id, amount, method, attempts, message, target, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ev.Type, ev.SessionID, ev.RestaurantID, ev.OrderID, ev.Amount, ev.Method, ev.Attempts, ev.Message, ev.Target, ev.Timestamp)
	return err
}

func (r *PostgresRepository) ListOrderEvents(ctx context.Context, orderID int) ([]domain.StoredEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, type, restaurant_id, order_id, amount, method, attempts, message, target, occurred_at, received_at
		FROM checkout_events
		WHERE order_id = $1
		ORDER BY occurred_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.StoredEvent{}
	for rows.Next() {
		var ev domain.StoredEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.RestaurantID, &ev.OrderID, &ev.Amount,
			&ev.Method, &ev.Attempts, &ev.Message, &ev.Target, &ev.Timestamp, &ev.ReceivedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
