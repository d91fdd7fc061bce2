package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item in the user's catalog
type Product struct {
	ID                int64           `db:"id" json:"id"`
	UserID            string          `db:"user_id" json:"user_id"`
	Name              string          `db:"name" json:"name"`
	SKU               *string         `db:"sku" json:"sku,omitempty"`
	Quantity          int             `db:"quantity" json:"quantity"`
	Price             decimal.Decimal `db:"price" json:"price"`
	Category          *string         `db:"category" json:"category,omitempty"`
	ImageURL          *string         `db:"image_url" json:"image_url,omitempty"`
	LowStockThreshold int             `db:"low_stock_threshold" json:"low_stock_threshold"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// IsLowStock reports whether the product is at or below its threshold.
// The comparison is inclusive: quantity == threshold counts as low stock.
func (p *Product) IsLowStock() bool {
	return p.Quantity <= p.LowStockThreshold
}

// SKUString returns the SKU or an empty string when unset.
func (p *Product) SKUString() string {
	if p.SKU == nil {
		return ""
	}
	return *p.SKU
}

// Order represents a customer order
type Order struct {
	ID              int64           `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerContact string          `db:"customer_contact" json:"customer_contact,omitempty"`
	Status          string          `db:"status" json:"status"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// OrderItem represents a line on an order. Items are immutable once written
// and are removed only together with their parent order.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Subtotal returns unit price times quantity for the line.
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// InventoryLog is an append-only audit record of a stock change.
// Product name and SKU are denormalized at write time for display.
type InventoryLog struct {
	ID              int64     `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	ProductID       int64     `db:"product_id" json:"product_id"`
	ChangeType      string    `db:"change_type" json:"change_type"`
	QuantityChanged int       `db:"quantity_changed" json:"quantity_changed"`
	ProductName     string    `db:"product_name" json:"product_name"`
	ProductSKU      string    `db:"product_sku" json:"product_sku"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Inventory log change types
const (
	ChangeTypeAdd    = "add"
	ChangeTypeRemove = "remove"
)
