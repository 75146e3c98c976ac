package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/cart"
	"overcooked-storefront/storefront-svc/internal/catalog"
	"overcooked-storefront/storefront-svc/internal/checkout"
	"overcooked-storefront/storefront-svc/internal/domain"
	"overcooked-storefront/storefront-svc/internal/money"
	"overcooked-storefront/storefront-svc/internal/payment"
)

type Menu struct {
	Restaurant domain.Restaurant `json:"restaurant"`
	Items      []domain.MenuItem `json:"items"`
}

type CartLineView struct {
	MenuItemID int             `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

type CartView struct {
	RestaurantID int               `json:"restaurant_id"`
	Lines        []CartLineView    `json:"lines"`
	ItemCount    int               `json:"item_count"`
	Total        decimal.Decimal   `json:"total"`
	TotalDisplay string            `json:"total_display"`
	Checkout     checkout.Snapshot `json:"checkout"`
}

type CheckoutResult struct {
	Order   domain.Order     `json:"order"`
	Payment payment.Snapshot `json:"payment"`
}

// Session is one browser's storefront state: the open menu, its cart, the
// checkout in progress and the payments it started.
type Session struct {
	ID string

	backend Backend
	opts    Options
	catalog *catalog.Catalog

	mu         sync.Mutex
	cookie     string
	lastSeen   time.Time
	cart       *cart.Cart
	submitter  *checkout.Submitter
	payments   map[int]*payment.Coordinator
	navigation map[int]domain.NavigationEvent
	closed     bool
}

func newSession(id, cookie string, factory BackendFactory, opts Options) *Session {
	s := &Session{
		ID:         id,
		opts:       opts,
		cookie:     cookie,
		lastSeen:   time.Now(),
		payments:   make(map[int]*payment.Coordinator),
		navigation: make(map[int]domain.NavigationEvent),
	}
	s.backend = factory(s.Cookie)
	s.catalog = catalog.New(s.backend)
	return s
}

func (s *Session) Cookie() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookie
}

// SetCookie records the backend cookie the browser sent most recently.
func (s *Session) SetCookie(cookie string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookie = cookie
}

func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// OpenMenu loads a restaurant's menu and returns the items matching search.
// Opening a different restaurant starts a fresh cart.
func (s *Session) OpenMenu(ctx context.Context, restaurantID int, search string) (Menu, error) {
	if err := s.catalog.Load(ctx, restaurantID); err != nil {
		return Menu{}, err
	}

	s.mu.Lock()
	if s.cart == nil || s.cart.RestaurantID() != restaurantID {
		if s.cart != nil {
			s.cart.Clear()
		}
		s.cart = cart.New(restaurantID, s.catalog)
		s.submitter = checkout.New(s.backend, s.cart,
			checkout.WithGuard(s.opts.Guard),
			checkout.WithPublisher(s.opts.Events),
			checkout.WithSessionID(s.ID),
		)
	}
	s.mu.Unlock()

	return Menu{
		Restaurant: s.catalog.Restaurant(),
		Items:      slices.Collect(s.catalog.Filter(search)),
	}, nil
}

func (s *Session) AddToCart(itemID int) (CartView, error) {
	c, err := s.currentCart()
	if err != nil {
		return CartView{}, err
	}
	item, ok := s.catalog.Item(itemID)
	if !ok {
		return CartView{}, fmt.Errorf("add item %d: %w", itemID, apperr.ErrItemNotFound)
	}
	if err := c.AddItem(item); err != nil {
		return CartView{}, err
	}
	return s.Cart(), nil
}

func (s *Session) ChangeQuantity(itemID, delta int) (CartView, error) {
	c, err := s.currentCart()
	if err != nil {
		return CartView{}, err
	}
	c.ChangeQuantity(itemID, delta)
	return s.Cart(), nil
}

func (s *Session) Cart() CartView {
	s.mu.Lock()
	c, sub := s.cart, s.submitter
	s.mu.Unlock()

	view := CartView{Lines: []CartLineView{}, Total: decimal.Zero}
	if c == nil {
		view.TotalDisplay = money.Format(view.Total, s.opts.Currency)
		view.Checkout = checkout.Snapshot{Status: checkout.Idle}
		return view
	}

	view.RestaurantID = c.RestaurantID()
	for _, l := range c.ToOrderLines() {
		view.Lines = append(view.Lines, CartLineView{
			MenuItemID: l.MenuItemID,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			LineTotal:  money.LineTotal(l.UnitPrice, l.Quantity),
		})
	}
	view.ItemCount = c.ItemCount()
	view.Total = c.Total()
	view.TotalDisplay = money.Format(view.Total, s.opts.Currency)
	view.Checkout = sub.Snapshot()
	return view
}

func (s *Session) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart != nil {
		s.cart.Clear()
	}
}

// Checkout submits the cart and opens the payment step for the new order.
func (s *Session) Checkout(ctx context.Context, address string) (CheckoutResult, error) {
	s.mu.Lock()
	sub := s.submitter
	s.mu.Unlock()
	if sub == nil {
		return CheckoutResult{}, fmt.Errorf("checkout: %w", apperr.Invalid("cart", "is empty"))
	}

	order, err := sub.Submit(ctx, address)
	if err != nil {
		return CheckoutResult{}, err
	}

	coord, err := s.coordinator(order.ID, order.TotalPrice)
	if err != nil {
		return CheckoutResult{Order: order}, err
	}
	return CheckoutResult{Order: order, Payment: coord.Snapshot()}, nil
}

// StartPayment chooses the method and initiates payment for an order. An
// order placed in an earlier visit gets its payment step opened from the
// backend's copy.
func (s *Session) StartPayment(ctx context.Context, orderID int, method domain.PaymentMethod, phone string) (payment.Snapshot, error) {
	coord, err := s.paymentFor(ctx, orderID)
	if err != nil {
		return payment.Snapshot{}, err
	}
	if err := coord.ChooseMethod(method, phone); err != nil {
		return coord.Snapshot(), err
	}
	return coord.Initiate(ctx)
}

func (s *Session) PaymentStatus(orderID int) (payment.Snapshot, error) {
	s.mu.Lock()
	coord, ok := s.payments[orderID]
	s.mu.Unlock()
	if !ok {
		return payment.Snapshot{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNoPayment)
	}
	return coord.Snapshot(), nil
}

func (s *Session) CheckPayment(ctx context.Context, orderID int) (payment.Snapshot, error) {
	s.mu.Lock()
	coord, ok := s.payments[orderID]
	s.mu.Unlock()
	if !ok {
		return payment.Snapshot{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNoPayment)
	}
	return coord.CheckNow(ctx)
}

// CancelPayment is navigation away from the payment step.
func (s *Session) CancelPayment(orderID int) error {
	s.mu.Lock()
	coord, ok := s.payments[orderID]
	delete(s.payments, orderID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, apperr.ErrNoPayment)
	}
	coord.Cancel()
	return nil
}

// Navigate records the coordinator's redirect signal for the browser to
// pick up. Each order keeps its own pending signal.
func (s *Session) Navigate(ev domain.NavigationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigation[ev.OrderID] = ev
}

// Navigation returns and clears the pending redirect for orderID, if any.
func (s *Session) Navigation(orderID int) *domain.NavigationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.navigation[orderID]
	if !ok {
		return nil
	}
	delete(s.navigation, orderID)
	return &ev
}

func (s *Session) Orders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.backend.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Order reads one order through the browser's own backend credentials, so
// the backend decides whether this session may see it.
func (s *Session) Order(ctx context.Context, orderID int) (domain.Order, error) {
	order, err := s.backend.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return order, nil
}

// CancelOrder deletes an order that has not been delivered yet.
func (s *Session) CancelOrder(ctx context.Context, orderID int) error {
	order, err := s.backend.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	if order.Delivered() {
		return fmt.Errorf("cancel order %d: %w", orderID, apperr.Invalid("order", "has already been delivered"))
	}

	s.mu.Lock()
	coord := s.payments[orderID]
	delete(s.payments, orderID)
	s.mu.Unlock()
	if coord != nil {
		coord.Cancel()
	}

	if err := s.backend.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	log.Printf("[CHECKOUT] session=%s cancelled order %d", s.ID, orderID)
	return nil
}

// Leave is the browser leaving the restaurant context. The cart is
// discarded and every payment poll stops.
func (s *Session) Leave() {
	s.mu.Lock()
	if s.cart != nil {
		s.cart.Clear()
	}
	coords := make([]*payment.Coordinator, 0, len(s.payments))
	for id, coord := range s.payments {
		coords = append(coords, coord)
		delete(s.payments, id)
	}
	s.mu.Unlock()

	for _, coord := range coords {
		coord.Cancel()
	}
}

// Close ends the session. It returns after every background poll has
// stopped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Leave()
}

func (s *Session) currentCart() (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		return nil, apperr.Invalid("menu", "open a restaurant menu first")
	}
	return s.cart, nil
}

// coordinator returns the live coordinator for orderID, opening one if
// needed. A closed session opens nothing.
func (s *Session) coordinator(orderID int, amount decimal.Decimal) (*payment.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("session %s: %w", s.ID, apperr.ErrSessionNotFound)
	}
	if coord, ok := s.payments[orderID]; ok {
		return coord, nil
	}
	coord := payment.New(s.backend, orderID, amount, s.opts.Payment,
		payment.WithNavigator(s),
		payment.WithPublisher(s.opts.Events),
		payment.WithSessionID(s.ID),
	)
	s.payments[orderID] = coord
	return coord, nil
}

func (s *Session) paymentFor(ctx context.Context, orderID int) (*payment.Coordinator, error) {
	s.mu.Lock()
	coord, ok := s.payments[orderID]
	s.mu.Unlock()
	if ok {
		return coord, nil
	}

	order, err := s.backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("open payment for order %d: %w", orderID, err)
	}
	if order.PaymentStatus {
		return nil, fmt.Errorf("order %d is already paid: %w", orderID, apperr.ErrInvalidTransition)
	}
	return s.coordinator(order.ID, order.TotalPrice)
}
