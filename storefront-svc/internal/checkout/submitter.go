// Package checkout turns a cart into an order on the backend.
//
// The submitter is a small state machine:
//
//	Idle -> Validating -> Submitting -> Succeeded | Failed
//
// Failed hands control straight back to Idle with the cart intact. Only one
// order-creation request is ever in flight; a submit while Validating or
// Submitting is refused without touching the backend.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/cart"
	"overcooked-storefront/storefront-svc/internal/domain"
)

var errNoOrderID = errors.New("response carried no order id")

type Status string

const (
	Idle       Status = "idle"
	Validating Status = "validating"
	Submitting Status = "submitting"
	Succeeded  Status = "succeeded"
	Failed     Status = "failed"
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
}

// Guard suppresses duplicate submissions of the same cart across replicas.
type Guard interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Publisher interface {
	Publish(ctx context.Context, event domain.CheckoutEvent) error
}

type Snapshot struct {
	Status      Status        `json:"status"`
	CanSubmit   bool          `json:"can_submit"`
	LastOutcome Status        `json:"last_outcome,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	Order       *domain.Order `json:"order,omitempty"`
}

type Submitter struct {
	api       OrderAPI
	cart      *cart.Cart
	guard     Guard
	events    Publisher
	sessionID string

	mu      sync.Mutex
	status  Status
	outcome Status
	lastErr error
	order   *domain.Order

	// unreleased is a guard key whose release failed. The marker it left
	// behind belongs to this submitter, so the next submit skips the claim.
	unreleased string
}

type Option func(*Submitter)

func WithGuard(g Guard) Option { return func(s *Submitter) { s.guard = g } }

func WithPublisher(p Publisher) Option { return func(s *Submitter) { s.events = p } }

func WithSessionID(id string) Option { return func(s *Submitter) { s.sessionID = id } }

func New(api OrderAPI, c *cart.Cart, opts ...Option) *Submitter {
	if api == nil {
		panic("checkout.New: nil order api")
	}
	if c == nil {
		panic("checkout.New: nil cart")
	}
	s := &Submitter{api: api, cart: c, status: Idle}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates an order from the cart. On success the cart is cleared and
// the created order, carrying its server-assigned id, is returned.
func (s *Submitter) Submit(ctx context.Context, address string) (domain.Order, error) {
	s.mu.Lock()
	if !s.idleLocked() {
		s.mu.Unlock()
		return domain.Order{}, fmt.Errorf("checkout: %w", apperr.ErrSubmitInFlight)
	}
	if err := s.validate(address); err != nil {
		s.mu.Unlock()
		return domain.Order{}, fmt.Errorf("checkout: %w", err)
	}

	s.status = Validating
	req := domain.OrderRequest{
		RestaurantID:    s.cart.RestaurantID(),
		Lines:           s.cart.ToOrderLines(),
		DeliveryAddress: strings.TrimSpace(address),
		TotalPrice:      s.cart.Total(),
	}
	key := s.guardKey()
	ownsMarker := key == s.unreleased
	s.status = Submitting
	s.mu.Unlock()

	if s.guard != nil && !ownsMarker {
		claimed, err := s.guard.Claim(ctx, key)
		switch {
		case err != nil:
			log.Printf("ERROR: [CHECKOUT] submission guard unavailable: %v", err)
		case !claimed:
			s.mu.Lock()
			s.status = Idle
			s.mu.Unlock()
			return domain.Order{}, fmt.Errorf("checkout: %w", apperr.ErrSubmitInFlight)
		}
	}

	order, err := s.api.CreateOrder(ctx, req)
	if err == nil && order.ID <= 0 {
		err = &apperr.FetchError{Op: "create order", Err: errNoOrderID}
	}
	if err != nil {
		s.fail(ctx, key, req, err)
		return domain.Order{}, fmt.Errorf("checkout: %w", err)
	}

	s.mu.Lock()
	s.status = Succeeded
	s.outcome = Succeeded
	s.lastErr = nil
	s.order = &order
	s.unreleased = ""
	s.cart.Clear()
	s.mu.Unlock()

	log.Printf("[CHECKOUT] session=%s created order %d total=%s", s.sessionID, order.ID, req.TotalPrice)
	s.publish(ctx, domain.CheckoutEvent{
		Type:         domain.EventOrderSubmitted,
		RestaurantID: req.RestaurantID,
		OrderID:      order.ID,
		Amount:       req.TotalPrice,
	})
	return order, nil
}

// fail returns the machine to Idle with the cart untouched.
func (s *Submitter) fail(ctx context.Context, key string, req domain.OrderRequest, err error) {
	unreleased := ""
	if s.guard != nil {
		if rerr := s.guard.Release(context.WithoutCancel(ctx), key); rerr != nil {
			log.Printf("ERROR: [CHECKOUT] submission guard release %s: %v", key, rerr)
			unreleased = key
		}
	}

	s.mu.Lock()
	s.outcome = Failed
	s.lastErr = err
	s.status = Idle
	s.unreleased = unreleased
	s.mu.Unlock()

	log.Printf("[CHECKOUT] session=%s order creation failed: %v", s.sessionID, err)
	s.publish(ctx, domain.CheckoutEvent{
		Type:         domain.EventOrderSubmitFailed,
		RestaurantID: req.RestaurantID,
		Amount:       req.TotalPrice,
		Message:      apperr.UserMessage(err),
	})
}

func (s *Submitter) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Submitter) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:      s.status,
		CanSubmit:   s.idleLocked() && !s.cart.IsEmpty(),
		LastOutcome: s.outcome,
	}
	if s.lastErr != nil {
		snap.LastError = apperr.UserMessage(s.lastErr)
	}
	if s.order != nil {
		o := *s.order
		snap.Order = &o
	}
	return snap
}

// idleLocked reports whether a new submission may start. Succeeded is a
// resting state: the next cart can be checked out from it.
func (s *Submitter) idleLocked() bool {
	return s.status == Idle || s.status == Succeeded
}

func (s *Submitter) validate(address string) error {
	if s.cart.IsEmpty() {
		return apperr.Invalid("cart", "is empty")
	}
	if strings.TrimSpace(address) == "" {
		return apperr.Invalid("delivery_address", "is required")
	}
	return nil
}

func (s *Submitter) guardKey() string {
	return fmt.Sprintf("%s:%d:%d", s.sessionID, s.cart.RestaurantID(), s.cart.Generation())
}

func (s *Submitter) publish(ctx context.Context, event domain.CheckoutEvent) {
	if s.events == nil {
		return
	}
	event.SessionID = s.sessionID
	event.Timestamp = time.Now()
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Printf("ERROR: [CHECKOUT] publish %s: %v", event.Type, err)
	}
}
