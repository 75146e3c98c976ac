// Package cart holds the session-scoped cart of one restaurant's menu items.
//
// Lines are keyed by menu item id and kept in first-added order. Totals are
// recomputed from the latest known prices on every call; nothing is cached.
package cart

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/domain"
	"overcooked-storefront/storefront-svc/internal/money"
)

// MaxQuantity bounds a single line.
const MaxQuantity = 999

// PriceSource returns the current catalog entry for an item, if still listed.
type PriceSource interface {
	Item(id int) (domain.MenuItem, bool)
}

type line struct {
	item     domain.MenuItem
	quantity int
}

// Cart is safe for concurrent use.
type Cart struct {
	mu           sync.Mutex
	restaurantID int
	prices       PriceSource
	order        []int
	lines        map[int]*line
	generation   int
}

func New(restaurantID int, prices PriceSource) *Cart {
	return &Cart{
		restaurantID: restaurantID,
		prices:       prices,
		lines:        make(map[int]*line),
	}
}

func (c *Cart) RestaurantID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restaurantID
}

// AddItem increments the line for item by one, creating it at quantity 1.
// Unavailable items are refused with apperr.ErrItemUnavailable.
func (c *Cart) AddItem(item domain.MenuItem) error {
	if !item.Available {
		return fmt.Errorf("add %q: %w", item.Name, apperr.ErrItemUnavailable)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.lines[item.ID]; ok {
		l.item = item
		if l.quantity < MaxQuantity {
			l.quantity++
		}
		return nil
	}
	c.lines[item.ID] = &line{item: item, quantity: 1}
	c.order = append(c.order, item.ID)
	return nil
}

// ChangeQuantity adds delta to the line's quantity and removes the line when
// the result drops to zero or below. Quantities are capped at MaxQuantity.
// Unknown ids are ignored.
func (c *Cart) ChangeQuantity(itemID, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.lines[itemID]
	if !ok {
		return
	}
	if delta > MaxQuantity-l.quantity {
		l.quantity = MaxQuantity
		return
	}
	l.quantity += delta
	if l.quantity <= 0 {
		c.removeLocked(itemID)
	}
}

func (c *Cart) removeLocked(itemID int) {
	delete(c.lines, itemID)
	for i, id := range c.order {
		if id == itemID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	totals := make([]decimal.Decimal, 0, len(c.order))
	for _, id := range c.order {
		l := c.lines[id]
		totals = append(totals, money.LineTotal(c.currentLocked(l).UnitPrice, l.quantity))
	}
	return money.Sum(totals...)
}

func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, l := range c.lines {
		n += l.quantity
	}
	return n
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool { return c.Len() == 0 }

// Clear empties the cart and starts a new generation.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = make(map[int]*line)
	c.order = nil
	c.generation++
}

// Generation changes every time the cart is cleared. Two submissions of the
// same generation are submissions of the same cart.
func (c *Cart) Generation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.CartLine, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, domain.CartLine{MenuItemID: id, Quantity: c.lines[id].quantity})
	}
	return out
}

// ToOrderLines snapshots the cart for an order payload. The returned slice
// holds copies and never changes when the catalog does.
func (c *Cart) ToOrderLines() []domain.OrderLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.OrderLine, 0, len(c.order))
	for _, id := range c.order {
		l := c.lines[id]
		item := c.currentLocked(l)
		out = append(out, domain.OrderLine{
			MenuItemID: id,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   l.quantity,
		})
	}
	return out
}

// currentLocked prefers the live catalog entry over the copy taken at add time.
func (c *Cart) currentLocked(l *line) domain.MenuItem {
	if c.prices != nil {
		if item, ok := c.prices.Item(l.item.ID); ok {
			return item
		}
	}
	return l.item
}
