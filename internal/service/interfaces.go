package service

import (
	"context"
	"errors"
	"io"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
)

// ErrValidation marks errors detected before any mutation. The API layer
// maps it to a 400.
var ErrValidation = errors.New("validation failed")

// Store is the record-store surface the services depend on. *store.Store
// implements it; tests substitute an in-memory fake.
type Store interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, userID string, id int64) (*models.Product, error)
	GetProducts(ctx context.Context, userID string) ([]models.Product, error)
	GetProductsByIDs(ctx context.Context, userID string, ids []int64) ([]models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	AdjustProductQuantity(ctx context.Context, userID string, productID int64, delta int) error
	DeleteProduct(ctx context.Context, userID string, id int64) error

	CreateInventoryLog(ctx context.Context, entry *models.InventoryLog) error
	GetInventoryLogs(ctx context.Context, userID string, changeType string, productID int64) ([]models.InventoryLog, error)

	CreateOrderTx(ctx context.Context, order *models.Order, lines []store.OrderLine) ([]models.OrderItem, error)
	GetOrderByID(ctx context.Context, userID string, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error)
	GetOrders(ctx context.Context, userID string) ([]models.Order, error)
	GetOrdersInRange(ctx context.Context, userID string, start, end time.Time) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, userID string, orderID int64, status string) error
	DeleteOrder(ctx context.Context, userID string, orderID int64) error
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error)
}

// EventPublisher publishes domain events. Publishing is best-effort for
// every caller: a failed publish is logged, never propagated.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error
}

// ImageStore is the blob-store boundary for product images. Save returns a
// publicly resolvable URL for the stored key; Delete removes by the same key.
type ImageStore interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) string
}

// IdempotencyCache is the fast-path duplicate check in front of the
// orders.idempotency_key unique column.
type IdempotencyCache interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}
