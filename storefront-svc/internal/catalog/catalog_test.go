package catalog_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"overcooked-storefront/storefront-svc/internal/apperr"
	"overcooked-storefront/storefront-svc/internal/catalog"
	"overcooked-storefront/storefront-svc/internal/domain"
	"overcooked-storefront/storefront-svc/internal/mocks"
)

var menu = []domain.MenuItem{
	{ID: 1, Name: "Chicken Pilau", UnitPrice: decimal.NewFromInt(500), Description: "Spiced rice", Available: true},
	{ID: 2, Name: "Nyama Choma", UnitPrice: decimal.NewFromInt(1200), Description: "Grilled goat", Available: true},
	{ID: 3, Name: "Samosa", UnitPrice: decimal.NewFromInt(50), Description: "Beef or CHICKEN filling", Available: false},
}

func loaded(t *testing.T) *catalog.Catalog {
	t.Helper()
	api := mocks.NewCatalogAPI(t)
	api.On("GetRestaurant", mock.Anything, 10).Return(domain.Restaurant{ID: 10, Name: "Mama Oliech"}, nil).Once()
	api.On("ListItems", mock.Anything, 10).Return(menu, nil).Once()

	c := catalog.New(api)
	require.NoError(t, c.Load(context.Background(), 10))
	return c
}

func TestCatalog_Load(t *testing.T) {
	c := loaded(t)

	assert.Equal(t, "Mama Oliech", c.Restaurant().Name)
	assert.Equal(t, 10, c.RestaurantID())
	assert.Equal(t, 3, c.Len())

	item, ok := c.Item(2)
	require.True(t, ok)
	assert.Equal(t, "Nyama Choma", item.Name)

	_, ok = c.Item(99)
	assert.False(t, ok)
}

func TestCatalog_LoadFailureKeepsPreviousState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(api *mocks.CatalogAPI)
	}{
		{
			name: "items fail",
			setup: func(api *mocks.CatalogAPI) {
				api.On("GetRestaurant", mock.Anything, 11).Return(domain.Restaurant{ID: 11}, nil).Maybe()
				api.On("ListItems", mock.Anything, 11).Return(nil, &apperr.FetchError{Op: "list items", StatusCode: 500}).Once()
			},
		},
		{
			name: "restaurant fails",
			setup: func(api *mocks.CatalogAPI) {
				api.On("GetRestaurant", mock.Anything, 11).Return(domain.Restaurant{}, &apperr.FetchError{Op: "get restaurant", StatusCode: 404}).Once()
				api.On("ListItems", mock.Anything, 11).Return([]domain.MenuItem{{ID: 7}}, nil).Maybe()
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			api := mocks.NewCatalogAPI(t)
			api.On("GetRestaurant", mock.Anything, 10).Return(domain.Restaurant{ID: 10}, nil).Once()
			api.On("ListItems", mock.Anything, 10).Return(menu, nil).Once()
			testCase.setup(api)

			c := catalog.New(api)
			require.NoError(t, c.Load(context.Background(), 10))

			err := c.Load(context.Background(), 11)

			var fe *apperr.FetchError
			assert.ErrorAs(t, err, &fe)
			assert.Equal(t, 10, c.RestaurantID())
			assert.Equal(t, 3, c.Len())
		})
	}
}

func TestCatalog_Filter(t *testing.T) {
	c := loaded(t)

	tests := []struct {
		name   string
		search string
		want   []int
	}{
		{name: "empty yields all in order", search: "", want: []int{1, 2, 3}},
		{name: "whitespace yields all", search: "   ", want: []int{1, 2, 3}},
		{name: "name case-insensitive", search: "PILAU", want: []int{1}},
		{name: "description match", search: "chicken", want: []int{1, 3}},
		{name: "no match", search: "sushi", want: nil},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			var got []int
			for item := range c.Filter(testCase.search) {
				got = append(got, item.ID)
			}
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestCatalog_FilterIsRestartableAndLazy(t *testing.T) {
	c := loaded(t)
	seq := c.Filter("a")

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestCatalog_FetchErrorPropagates(t *testing.T) {
	api := mocks.NewCatalogAPI(t)
	api.On("GetRestaurant", mock.Anything, 10).Return(domain.Restaurant{}, errors.New("dial tcp: refused")).Once()
	api.On("ListItems", mock.Anything, 10).Return(nil, nil).Maybe()

	c := catalog.New(api)
	err := c.Load(context.Background(), 10)

	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}
