package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsLowStock(t *testing.T) {
	assert.True(t, (&Product{Quantity: 4, LowStockThreshold: 5}).IsLowStock())
	assert.True(t, (&Product{Quantity: 5, LowStockThreshold: 5}).IsLowStock())
	assert.False(t, (&Product{Quantity: 6, LowStockThreshold: 5}).IsLowStock())
	assert.True(t, (&Product{Quantity: 0, LowStockThreshold: 0}).IsLowStock())
}

func TestSubtotal(t *testing.T) {
	item := &OrderItem{Quantity: 3, UnitPrice: decimal.RequireFromString("4.50")}
	assert.True(t, item.Subtotal().Equal(decimal.RequireFromString("13.50")))
}

func TestValidOrderStatus(t *testing.T) {
	assert.True(t, ValidOrderStatus(OrderStatusPending))
	assert.True(t, ValidOrderStatus(OrderStatusCompleted))
	assert.True(t, ValidOrderStatus(OrderStatusCancelled))
	assert.False(t, ValidOrderStatus("shipped"))
	assert.False(t, ValidOrderStatus(""))
}
