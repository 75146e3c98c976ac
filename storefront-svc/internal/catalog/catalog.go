// Package catalog is the read-only view of one restaurant's menu.
package catalog

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"overcooked-storefront/storefront-svc/internal/domain"
)

type API interface {
	GetRestaurant(ctx context.Context, id int) (domain.Restaurant, error)
	ListItems(ctx context.Context, restaurantID int) ([]domain.MenuItem, error)
}

// Catalog holds the last successfully loaded menu. A failed load leaves it
// untouched.
type Catalog struct {
	api API

	mu         sync.RWMutex
	restaurant domain.Restaurant
	items      []domain.MenuItem
	byID       map[int]int
}

func New(api API) *Catalog {
	if api == nil {
		panic("catalog.New: nil api")
	}
	return &Catalog{api: api, byID: map[int]int{}}
}

// Load fetches restaurant metadata and the item list concurrently and
// replaces the catalog wholesale when both succeed.
func (c *Catalog) Load(ctx context.Context, restaurantID int) error {
	g, gctx := errgroup.WithContext(ctx)

	var rest domain.Restaurant
	var items []domain.MenuItem

	g.Go(func() error {
		var err error
		rest, err = c.api.GetRestaurant(gctx, restaurantID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = c.api.ListItems(gctx, restaurantID)
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("load menu %d: %w", restaurantID, err)
	}

	byID := make(map[int]int, len(items))
	for i, item := range items {
		byID[item.ID] = i
	}

	c.mu.Lock()
	c.restaurant = rest
	c.items = items
	c.byID = byID
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Restaurant() domain.Restaurant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.restaurant
}

func (c *Catalog) RestaurantID() int {
	return c.Restaurant().ID
}

func (c *Catalog) Item(id int) (domain.MenuItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[id]
	if !ok {
		return domain.MenuItem{}, false
	}
	return c.items[i], true
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Filter yields items whose name or description contains searchText,
// ignoring case. An empty searchText yields every item. The sequence is
// bound to the menu loaded at call time and can be ranged over repeatedly.
func (c *Catalog) Filter(searchText string) iter.Seq[domain.MenuItem] {
	c.mu.RLock()
	items := c.items
	c.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(searchText))

	return func(yield func(domain.MenuItem) bool) {
		for _, item := range items {
			if needle != "" && !matches(item, needle) {
				continue
			}
			if !yield(item) {
				return
			}
		}
	}
}

func matches(item domain.MenuItem, needle string) bool {
	return strings.Contains(strings.ToLower(item.Name), needle) ||
		strings.Contains(strings.ToLower(item.Description), needle)
}
