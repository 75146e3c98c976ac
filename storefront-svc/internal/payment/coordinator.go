// Package payment drives the payment step of one order.
//
//	idle (choosing method) -> submitting -> awaiting_confirmation -> confirmed
//	submitting -> failed
//	awaiting_confirmation -> timed_out
//
// Cash is recorded synchronously and goes straight to confirmed. Mobile money
// is confirmed out of band, so the coordinator polls the order until the
// backend reports it paid or the attempt budget runs out. failed and
// timed_out can be re-initiated; cancelled is final.
package payment

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/domain"
)

const (
	DefaultPollInterval  = 3 * time.Second
	DefaultMaxAttempts   = 10
	DefaultRedirectDelay = 2 * time.Second

	pendingMessage   = "Payment confirmation is pending. You can check again later."
	confirmedMessage = "Payment confirmed."
	cancelledMessage = "Payment cancelled."
)

type API interface {
	PushMobileMoney(ctx context.Context, push domain.MobileMoneyPush) (domain.Acknowledgement, error)
	RecordPayment(ctx context.Context, rec domain.PaymentRecord) (domain.Acknowledgement, error)
	GetOrder(ctx context.Context, id int) (domain.Order, error)
}

// Navigator receives the "go to the order list" signal after a confirmation.
type Navigator interface {
	Navigate(ev domain.NavigationEvent)
}

type Publisher interface {
	Publish(ctx context.Context, event domain.CheckoutEvent) error
}

type Config struct {
	PollInterval  time.Duration
	MaxAttempts   int
	RedirectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RedirectDelay < 0 {
		c.RedirectDelay = 0
	}
	return c
}

type Snapshot struct {
	OrderID     int                  `json:"order_id"`
	Amount      decimal.Decimal      `json:"amount"`
	Method      domain.PaymentMethod `json:"method,omitempty"`
	Status      domain.PaymentStatus `json:"status"`
	Attempts    int                  `json:"attempts"`
	MaxAttempts int                  `json:"max_attempts"`
	Message     string               `json:"message,omitempty"`
	RedirectTo  string               `json:"redirect_to,omitempty"`
}

type Coordinator struct {
	api       API
	cfg       Config
	orderID   int
	amount    decimal.Decimal
	navigator Navigator
	events    Publisher
	sessionID string

	mu       sync.Mutex
	attempt  domain.PaymentAttempt
	attempts int
	message  string
	redirect string
	checking bool
	stop     context.CancelFunc

	bg sync.WaitGroup
}

type Option func(*Coordinator)

func WithNavigator(n Navigator) Option { return func(c *Coordinator) { c.navigator = n } }

func WithPublisher(p Publisher) Option { return func(c *Coordinator) { c.events = p } }

func WithSessionID(id string) Option { return func(c *Coordinator) { c.sessionID = id } }

func New(api API, orderID int, amount decimal.Decimal, cfg Config, opts ...Option) *Coordinator {
	if api == nil {
		panic("payment.New: nil api")
	}
	c := &Coordinator{
		api:     api,
		cfg:     cfg.withDefaults(),
		orderID: orderID,
		amount:  amount,
		attempt: domain.PaymentAttempt{OrderID: orderID, Status: domain.PaymentIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChooseMethod records the payment method. A phone number is required for
// mobile money.
func (c *Coordinator) ChooseMethod(method domain.PaymentMethod, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkStartableLocked(); err != nil {
		return err
	}
	if err := validate(method, phone); err != nil {
		return fmt.Errorf("payment %d: %w", c.orderID, err)
	}
	c.attempt.Method = method
	c.attempt.PhoneNumber = strings.TrimSpace(phone)
	c.attempt.Status = domain.PaymentIdle
	c.message = ""
	return nil
}

// Initiate sends the payment intent for the chosen method. It returns once
// the backend has answered; confirmation of a mobile-money push continues
// in the background.
func (c *Coordinator) Initiate(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if err := c.checkStartableLocked(); err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, err
	}
	if err := validate(c.attempt.Method, c.attempt.PhoneNumber); err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, fmt.Errorf("payment %d: %w", c.orderID, err)
	}
	method, phone := c.attempt.Method, c.attempt.PhoneNumber
	c.attempt.Status = domain.PaymentSubmitting
	c.attempts = 0
	c.message = ""
	c.redirect = ""
	c.mu.Unlock()

	var ack domain.Acknowledgement
	var err error
	switch method {
	case domain.MethodCash:
		ack, err = c.api.RecordPayment(ctx, domain.PaymentRecord{OrderID: c.orderID, Amount: c.amount, Method: domain.MethodCash})
	default:
		ack, err = c.api.PushMobileMoney(ctx, domain.MobileMoneyPush{OrderID: c.orderID, PhoneNumber: phone, Amount: c.amount})
	}

	c.mu.Lock()
	if c.attempt.Status != domain.PaymentSubmitting {
		// Cancelled while the request was out.
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}

	if err != nil {
		c.attempt.Status = domain.PaymentFailed
		c.message = apperr.ServerMessage(err)
		if c.message == "" {
			c.message = apperr.GenericPaymentFailure
		}
		snap := c.snapshotLocked()
		c.mu.Unlock()

		log.Printf("ERROR: [PAYMENT] order=%d %s initiation failed: %v", c.orderID, method, err)
		c.publish(ctx, domain.EventPaymentFailed, snap)
		return snap, fmt.Errorf("payment %d: %w", c.orderID, err)
	}

	if method == domain.MethodCash {
		c.confirmLocked(ctx, ack.Message)
		snap := c.snapshotLocked()
		c.mu.Unlock()

		log.Printf("[PAYMENT] order=%d cash payment recorded", c.orderID)
		c.publish(ctx, domain.EventPaymentConfirmed, snap)
		return snap, nil
	}

	c.attempt.Status = domain.PaymentAwaitingConfirmation
	c.message = ack.Message
	c.startLocked(ctx, c.poll)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	log.Printf("[PAYMENT] order=%d mobile money push accepted, awaiting confirmation", c.orderID)
	c.publish(ctx, domain.EventPaymentInitiated, snap)
	return snap, nil
}

// CheckNow reads the order once. It lets a timed-out payment be confirmed
// after the gateway callback has landed.
func (c *Coordinator) CheckNow(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	switch {
	case c.attempt.Status == domain.PaymentConfirmed:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	case c.attempt.Status == domain.PaymentAwaitingConfirmation, c.checking:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, fmt.Errorf("payment %d: %w", c.orderID, apperr.ErrPaymentInFlight)
	case c.attempt.Status != domain.PaymentTimedOut:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, fmt.Errorf("payment %d: check in state %s: %w", c.orderID, c.attempt.Status, apperr.ErrInvalidTransition)
	}
	c.checking = true
	c.mu.Unlock()

	order, err := c.api.GetOrder(ctx, c.orderID)

	c.mu.Lock()
	c.checking = false
	if err != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, fmt.Errorf("payment %d: %w", c.orderID, err)
	}
	if c.attempt.Status != domain.PaymentTimedOut || !order.PaymentStatus {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	c.confirmLocked(ctx, "")
	snap := c.snapshotLocked()
	c.mu.Unlock()

	log.Printf("[PAYMENT] order=%d confirmed on manual check", c.orderID)
	c.publish(ctx, domain.EventPaymentConfirmed, snap)
	return snap, nil
}

// Cancel stops polling and any pending redirect. When it returns, the
// background goroutine has exited and no further request will be issued.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	var snap Snapshot
	cancelled := false
	if c.attempt.Status != domain.PaymentConfirmed && c.attempt.Status != domain.PaymentCancelled {
		c.attempt.Status = domain.PaymentCancelled
		c.message = cancelledMessage
		cancelled = true
		snap = c.snapshotLocked()
	}
	c.releaseLocked()
	c.mu.Unlock()

	c.bg.Wait()

	if cancelled {
		log.Printf("[PAYMENT] order=%d cancelled", c.orderID)
		c.publish(context.Background(), domain.EventPaymentCancelled, snap)
	}
}

// Wait blocks until background polling and redirect have finished.
func (c *Coordinator) Wait() {
	c.bg.Wait()
}

func (c *Coordinator) Status() domain.PaymentStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt.Status
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) OrderID() int { return c.orderID }

func (c *Coordinator) checkStartableLocked() error {
	switch c.attempt.Status {
	case domain.PaymentIdle, domain.PaymentFailed, domain.PaymentTimedOut:
		if c.checking {
			return fmt.Errorf("payment %d: %w", c.orderID, apperr.ErrPaymentInFlight)
		}
		return nil
	case domain.PaymentSubmitting, domain.PaymentAwaitingConfirmation:
		return fmt.Errorf("payment %d: %w", c.orderID, apperr.ErrPaymentInFlight)
	default:
		return fmt.Errorf("payment %d: initiate in state %s: %w", c.orderID, c.attempt.Status, apperr.ErrInvalidTransition)
	}
}

func validate(method domain.PaymentMethod, phone string) error {
	if !method.Valid() {
		return apperr.Invalid("method", "must be mobile_money or cash")
	}
	if method == domain.MethodMobileMoney && strings.TrimSpace(phone) == "" {
		return apperr.Invalid("phone_number", "is required for mobile money")
	}
	return nil
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		OrderID:     c.orderID,
		Amount:      c.amount,
		Method:      c.attempt.Method,
		Status:      c.attempt.Status,
		Attempts:    c.attempts,
		MaxAttempts: c.cfg.MaxAttempts,
		Message:     c.message,
		RedirectTo:  c.redirect,
	}
}

// startLocked runs fn in the single background slot. The context is
// detached from the caller's request and cancelled by Cancel.
func (c *Coordinator) startLocked(parent context.Context, fn func(ctx context.Context)) {
	if c.stop != nil {
		c.stop()
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	c.stop = cancel
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn(ctx)
	}()
}

// releaseLocked frees the background slot from inside the running goroutine.
func (c *Coordinator) releaseLocked() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

func (c *Coordinator) confirmLocked(parent context.Context, msg string) {
	c.attempt.Status = domain.PaymentConfirmed
	c.message = msg
	if c.message == "" {
		c.message = confirmedMessage
	}
	c.startLocked(parent, c.redirectAfterDelay)
}

// poll runs in the background slot. The first read happens one interval
// after the push was accepted.
func (c *Coordinator) poll(ctx context.Context) {
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := sleepOrDone(ctx, c.cfg.PollInterval); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		order, err := c.api.GetOrder(ctx, c.orderID)

		c.mu.Lock()
		if ctx.Err() != nil || c.attempt.Status != domain.PaymentAwaitingConfirmation {
			c.mu.Unlock()
			return
		}
		c.attempts = attempt
		if err != nil {
			c.mu.Unlock()
			log.Printf("[PAYMENT] order=%d poll %d/%d failed: %v", c.orderID, attempt, c.cfg.MaxAttempts, err)
			continue
		}
		if order.PaymentStatus {
			c.attempt.Status = domain.PaymentConfirmed
			c.message = confirmedMessage
			snap := c.snapshotLocked()
			c.mu.Unlock()

			log.Printf("[PAYMENT] order=%d confirmed on poll %d", c.orderID, attempt)
			c.publish(ctx, domain.EventPaymentConfirmed, snap)
			c.redirectAfterDelay(ctx)
			return
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	if ctx.Err() != nil || c.attempt.Status != domain.PaymentAwaitingConfirmation {
		c.mu.Unlock()
		return
	}
	c.attempt.Status = domain.PaymentTimedOut
	c.message = pendingMessage
	c.releaseLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	log.Printf("[PAYMENT] order=%d no confirmation after %d attempts", c.orderID, c.cfg.MaxAttempts)
	c.publish(ctx, domain.EventPaymentTimedOut, snap)
}

func (c *Coordinator) redirectAfterDelay(ctx context.Context) {
	if err := sleepOrDone(ctx, c.cfg.RedirectDelay); err != nil {
		return
	}

	c.mu.Lock()
	if ctx.Err() != nil || c.attempt.Status != domain.PaymentConfirmed {
		c.mu.Unlock()
		return
	}
	c.redirect = domain.TargetOrderList
	c.releaseLocked()
	c.mu.Unlock()

	ev := domain.NavigationEvent{
		SessionID: c.sessionID,
		OrderID:   c.orderID,
		Target:    domain.TargetOrderList,
		Reason:    string(domain.PaymentConfirmed),
	}
	if c.navigator != nil {
		c.navigator.Navigate(ev)
	}
	if c.events != nil {
		event := domain.CheckoutEvent{
			Type:      domain.EventNavigate,
			SessionID: c.sessionID,
			OrderID:   c.orderID,
			Amount:    c.amount,
			Target:    ev.Target,
			Timestamp: time.Now(),
		}
		if err := c.events.Publish(context.WithoutCancel(ctx), event); err != nil {
			log.Printf("ERROR: [PAYMENT] publish %s: %v", event.Type, err)
		}
	}
}

func (c *Coordinator) publish(ctx context.Context, eventType string, snap Snapshot) {
	if c.events == nil {
		return
	}
	event := domain.CheckoutEvent{
		Type:      eventType,
		SessionID: c.sessionID,
		OrderID:   snap.OrderID,
		Amount:    snap.Amount,
		Method:    snap.Method,
		Attempts:  snap.Attempts,
		Message:   snap.Message,
		Timestamp: time.Now(),
	}
	if err := c.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Printf("ERROR: [PAYMENT] publish %s: %v", eventType, err)
	}
}

// sleepOrDone waits for d or until ctx is done, whichever comes first.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
