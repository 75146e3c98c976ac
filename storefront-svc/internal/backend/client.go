// Package backend is the storefront's client for the platform REST API:
// catalog, orders and payments. Every request forwards the browser's
// session cookie; authentication itself stays with the backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/domain"
)

// MaxResponseBytes caps how much of a backend response is read.
const MaxResponseBytes = 1 << 20

var errResponseTooLarge = errors.New("response body too large")

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL string
	client  HTTPClient
	cookie  func() string
}

func New(baseURL string, client HTTPClient) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// WithCookieFunc returns a copy of the client that asks fn for the cookie
// before each request, so a session can follow the browser's latest login.
func (c *Client) WithCookieFunc(fn func() string) *Client {
	cp := *c
	cp.cookie = fn
	return &cp
}

func (c *Client) GetRestaurant(ctx context.Context, id int) (domain.Restaurant, error) {
	var rest domain.Restaurant
	err := c.do(ctx, "get restaurant", http.MethodGet, fmt.Sprintf("/api/restaurants/%d/", id), nil, &rest)
	return rest, err
}

func (c *Client) ListItems(ctx context.Context, restaurantID int) ([]domain.MenuItem, error) {
	var items []domain.MenuItem
	err := c.do(ctx, "list items", http.MethodGet, fmt.Sprintf("/api/restaurants/%d/items/", restaurantID), nil, &items)
	return items, err
}

func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, "create order", http.MethodPost, "/api/orders/", req, &order)
	return order, err
}

func (c *Client) GetOrder(ctx context.Context, id int) (domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, "get order", http.MethodGet, fmt.Sprintf("/api/orders/%d/", id), nil, &order)
	return order, err
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := c.do(ctx, "list orders", http.MethodGet, "/api/orders/", nil, &orders)
	return orders, err
}

func (c *Client) DeleteOrder(ctx context.Context, id int) error {
	return c.do(ctx, "delete order", http.MethodDelete, fmt.Sprintf("/api/orders/%d/", id), nil, nil)
}

func (c *Client) PushMobileMoney(ctx context.Context, push domain.MobileMoneyPush) (domain.Acknowledgement, error) {
	var ack domain.Acknowledgement
	err := c.do(ctx, "mobile money push", http.MethodPost, "/api/payments/mobile-money/push/", push, &ack)
	return ack, err
}

func (c *Client) RecordPayment(ctx context.Context, rec domain.PaymentRecord) (domain.Acknowledgement, error) {
	var ack domain.Acknowledgement
	err := c.do(ctx, "record payment", http.MethodPost, "/api/payments/", rec, &ack)
	return ack, err
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		if cookie := c.cookie(); cookie != "" {
			req.Header.Set("Cookie", cookie)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &apperr.FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return &apperr.FetchError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if len(data) > MaxResponseBytes {
		return &apperr.FetchError{Op: op, StatusCode: resp.StatusCode, Err: errResponseTooLarge}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("ERROR: %s %s -> %d", method, path, resp.StatusCode)
		return &apperr.FetchError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apperr.FetchError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts the human-readable message from an error body.
func errorMessage(data []byte) string {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error", "detail"} {
		if msg, ok := body[key].(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
	}
	return ""
}
