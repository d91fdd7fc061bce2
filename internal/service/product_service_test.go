package service

import (
	"context"
	"testing"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProductDefaultsThreshold(t *testing.T) {
	fs := newFakeStore()
	svc := NewProductService(fs, nil)

	p, err := svc.CreateProduct(context.Background(), testUser, &CreateProductRequest{
		Name:     "Widget",
		Quantity: 10,
		Price:    decimal.RequireFromString("2.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultLowStockThreshold, p.LowStockThreshold)
	assert.NotZero(t, p.ID)
}

func TestCreateProductValidation(t *testing.T) {
	fs := newFakeStore()
	svc := NewProductService(fs, nil)

	negative := -1
	cases := []struct {
		name string
		req  CreateProductRequest
	}{
		{"missing name", CreateProductRequest{Quantity: 1, Price: decimal.NewFromInt(1)}},
		{"negative quantity", CreateProductRequest{Name: "Widget", Quantity: -1, Price: decimal.NewFromInt(1)}},
		{"zero price", CreateProductRequest{Name: "Widget", Quantity: 1}},
		{"negative threshold", CreateProductRequest{Name: "Widget", Quantity: 1, Price: decimal.NewFromInt(1), LowStockThreshold: &negative}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(context.Background(), testUser, &tc.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateProductAuditsQuantityChange(t *testing.T) {
	fs := newFakeStore()
	svc := NewProductService(fs, nil)
	p := seedProduct(t, fs, "Widget", 10, "2.50", 5)

	updated, err := svc.UpdateProduct(context.Background(), testUser, p.ID, &UpdateProductRequest{
		Name:     "Widget",
		Quantity: 4,
		Price:    decimal.RequireFromString("2.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)

	logs, err := fs.GetInventoryLogs(context.Background(), testUser, models.ChangeTypeRemove, p.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 6, logs[0].QuantityChanged)
	assert.Equal(t, "Widget", logs[0].ProductName)
}

func TestUpdateProductNoQuantityChangeNoAudit(t *testing.T) {
	fs := newFakeStore()
	svc := NewProductService(fs, nil)
	p := seedProduct(t, fs, "Widget", 10, "2.50", 5)

	_, err := svc.UpdateProduct(context.Background(), testUser, p.ID, &UpdateProductRequest{
		Name:     "Widget Mk2",
		Quantity: 10,
		Price:    decimal.RequireFromString("3.00"),
	})
	require.NoError(t, err)

	logs, err := fs.GetInventoryLogs(context.Background(), testUser, "", p.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestGetProductScopedByUser(t *testing.T) {
	fs := newFakeStore()
	svc := NewProductService(fs, nil)
	p := seedProduct(t, fs, "Widget", 10, "2.50", 5)

	_, err := svc.GetProduct(context.Background(), "someone-else", p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFilterLowStockInclusiveBoundary(t *testing.T) {
	products := []models.Product{
		{ID: 1, Name: "below", Quantity: 4, LowStockThreshold: 5},
		{ID: 2, Name: "at", Quantity: 5, LowStockThreshold: 5},
		{ID: 3, Name: "above", Quantity: 6, LowStockThreshold: 5},
		{ID: 4, Name: "zero", Quantity: 0, LowStockThreshold: 0},
	}

	low := FilterLowStock(products)
	require.Len(t, low, 3)
	assert.Equal(t, int64(1), low[0].ID)
	assert.Equal(t, int64(2), low[1].ID)
	assert.Equal(t, int64(4), low[2].ID)
}

func TestListLowStockReflectsCurrentState(t *testing.T) {
	fs := newFakeStore()
	products := NewProductService(fs, nil)
	orders := NewOrderService(fs, nil, nil)
	p := seedProduct(t, fs, "Product A", 10, "4.00", 5)

	low, err := products.ListLowStockProducts(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, low)

	// An order for 4 drops quantity to 6, still above the threshold.
	_, err = orders.CreateOrder(context.Background(), testUser, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: p.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	low, err = products.ListLowStockProducts(context.Background(), testUser)
	require.NoError(t, err)
	assert.Empty(t, low)

	// One more unit out and the product sits exactly at the threshold.
	_, err = orders.CreateOrder(context.Background(), testUser, &CreateOrderRequest{
		CustomerName: "Bob",
		Items:        []OrderItemRequest{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	low, err = products.ListLowStockProducts(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].ID)
}
