package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderCompleted = "ORDER_COMPLETED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
	EventTypeOrderDeleted   = "ORDER_DELETED"
	EventTypeStockLow       = "STOCK_LOW"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent builds the common envelope with a fresh event ID
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent published when an order is created and stock reserved
type OrderCreatedEvent struct {
	BaseEvent
	OrderID      int64           `json:"order_id"`
	UserID       string          `json:"user_id"`
	CustomerName string          `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Items        []OrderItemData `json:"items"`
}

// OrderCompletedEvent published when a pending order is marked completed
type OrderCompletedEvent struct {
	BaseEvent
	OrderID int64           `json:"order_id"`
	UserID  string          `json:"user_id"`
	Items   []OrderItemData `json:"items"`
}

// OrderCancelledEvent published when an order is cancelled and stock restored
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64           `json:"order_id"`
	UserID  string          `json:"user_id"`
	Items   []OrderItemData `json:"items"`
}

// OrderDeletedEvent published when an order and its items are removed
type OrderDeletedEvent struct {
	BaseEvent
	OrderID   int64           `json:"order_id"`
	UserID    string          `json:"user_id"`
	WasStatus string          `json:"was_status"`
	Items     []OrderItemData `json:"items"`
}

// StockLowEvent published by the alert worker when a product hits its threshold
type StockLowEvent struct {
	BaseEvent
	ProductID   int64  `json:"product_id"`
	UserID      string `json:"user_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Threshold   int    `json:"threshold"`
}
