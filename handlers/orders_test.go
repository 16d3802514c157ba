package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go_trial/foodapi/models"
)

// catalogFake backs buildOrderLines with an in-memory menu.
type catalogFake struct {
	items map[primitive.ObjectID]models.MenuItem
}

func (c *catalogFake) fetch(ctx context.Context, id primitive.ObjectID) (*models.MenuItem, error) {
	item, ok := c.items[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &item, nil
}

func newCatalogFake(items ...models.MenuItem) *catalogFake {
	c := &catalogFake{items: make(map[primitive.ObjectID]models.MenuItem)}
	for _, item := range items {
		c.items[item.ID] = item
	}
	return c
}

func menuItem(restaurant primitive.ObjectID, name string, price float64, available bool) models.MenuItem {
	return models.MenuItem{
		ID:         primitive.NewObjectID(),
		Restaurant: restaurant,
		Name:       name,
		Price:      price,
		Available:  available,
	}
}

func TestBuildOrderLinesTotals(t *testing.T) {
	restaurant := primitive.NewObjectID()
	burger := menuItem(restaurant, "Burger", 500, true)
	fries := menuItem(restaurant, "Fries", 300, true)
	catalog := newCatalogFake(burger, fries)

	lines, gotRestaurant, total, err := buildOrderLines(context.Background(), []orderItemRequest{
		{MenuItem: burger.ID.Hex(), Quantity: 2},
		{MenuItem: fries.ID.Hex(), Quantity: 1},
	}, catalog.fetch)

	require.NoError(t, err)
	assert.Equal(t, restaurant, gotRestaurant)
	assert.Equal(t, 1300.0, total)
	require.Len(t, lines, 2)
	assert.Equal(t, "Burger", lines[0].Name)
	assert.Equal(t, 500.0, lines[0].Price)
	assert.Equal(t, int64(2), lines[0].Quantity)
	assert.Equal(t, "Fries", lines[1].Name)
	assert.Equal(t, int64(1), lines[1].Quantity)
}

func TestBuildOrderLinesDefaultsQuantity(t *testing.T) {
	restaurant := primitive.NewObjectID()
	soup := menuItem(restaurant, "Soup", 250, true)
	catalog := newCatalogFake(soup)

	tests := []struct {
		name     string
		quantity int64
	}{
		{"zero quantity", 0},
		{"negative quantity", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, _, total, err := buildOrderLines(context.Background(), []orderItemRequest{
				{MenuItem: soup.ID.Hex(), Quantity: tt.quantity},
			}, catalog.fetch)

			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.Equal(t, int64(1), lines[0].Quantity)
			assert.Equal(t, 250.0, total)
		})
	}
}

func TestBuildOrderLinesMissingItem(t *testing.T) {
	restaurant := primitive.NewObjectID()
	burger := menuItem(restaurant, "Burger", 500, true)
	catalog := newCatalogFake(burger)

	lines, _, _, err := buildOrderLines(context.Background(), []orderItemRequest{
		{MenuItem: burger.ID.Hex(), Quantity: 1},
		{MenuItem: primitive.NewObjectID().Hex(), Quantity: 1},
	}, catalog.fetch)

	require.ErrorIs(t, err, ErrItemNotFound)
	assert.Nil(t, lines)
}

func TestBuildOrderLinesInvalidID(t *testing.T) {
	catalog := newCatalogFake()

	_, _, _, err := buildOrderLines(context.Background(), []orderItemRequest{
		{MenuItem: "not-a-hex-id", Quantity: 1},
	}, catalog.fetch)

	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestBuildOrderLinesUnavailableItem(t *testing.T) {
	restaurant := primitive.NewObjectID()
	burger := menuItem(restaurant, "Burger", 500, true)
	special := menuItem(restaurant, "Special", 900, false)
	catalog := newCatalogFake(burger, special)

	lines, _, _, err := buildOrderLines(context.Background(), []orderItemRequest{
		{MenuItem: burger.ID.Hex(), Quantity: 1},
		{MenuItem: special.ID.Hex(), Quantity: 1},
	}, catalog.fetch)

	require.ErrorIs(t, err, ErrItemUnavailable)
	assert.Contains(t, err.Error(), "Special")
	assert.Nil(t, lines)
}

func TestBuildOrderLinesRejectsMixedRestaurants(t *testing.T) {
	burger := menuItem(primitive.NewObjectID(), "Burger", 500, true)
	sushi := menuItem(primitive.NewObjectID(), "Sushi", 800, true)
	catalog := newCatalogFake(burger, sushi)

	lines, _, _, err := buildOrderLines(context.Background(), []orderItemRequest{
		{MenuItem: burger.ID.Hex(), Quantity: 1},
		{MenuItem: sushi.ID.Hex(), Quantity: 1},
	}, catalog.fetch)

	require.ErrorIs(t, err, ErrMixedRestaurants)
	assert.Nil(t, lines)
}

func TestBuildOrderLinesSnapshotsPriceAtOrderTime(t *testing.T) {
	restaurant := primitive.NewObjectID()
	burger := menuItem(restaurant, "Burger", 500, true)
	catalog := newCatalogFake(burger)

	lines, _, _, err := buildOrderLines(context.Background(), []orderItemRequest{
		{MenuItem: burger.ID.Hex(), Quantity: 1},
	}, catalog.fetch)
	require.NoError(t, err)

	// A later menu edit must not affect the captured line.
	edited := catalog.items[burger.ID]
	edited.Price = 999
	edited.Name = "Deluxe Burger"
	catalog.items[burger.ID] = edited

	assert.Equal(t, "Burger", lines[0].Name)
	assert.Equal(t, 500.0, lines[0].Price)
}
