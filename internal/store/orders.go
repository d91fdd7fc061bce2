package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ErrDuplicateIdempotencyKey reports that another order already holds the
// requested idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// InsufficientStockError reports an order line that asked for more units
// than the product has on hand. The whole creation aborts on the first one.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %q: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// OrderLine is one requested {product, quantity} pair at creation time.
type OrderLine struct {
	ProductID int64
	Quantity  int
}

// CreateOrderTx creates an order, its items and the matching stock
// decrements in a single transaction. Each referenced product row is locked
// before the sufficiency check so concurrent orders cannot jointly
// over-commit stock. The item unit price is captured from the locked row.
// No inventory log entry is written here; logging happens on completion.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, lines []OrderLine) ([]models.OrderItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	total := order.TotalAmount
	items := make([]models.OrderItem, 0, len(lines))

	type lockedProduct struct {
		product models.Product
		line    OrderLine
	}
	locked := make([]lockedProduct, 0, len(lines))

	for _, line := range lines {
		var product models.Product
		err := tx.GetContext(ctx, &product,
			"SELECT * FROM products WHERE id = $1 AND user_id = $2 FOR UPDATE",
			line.ProductID, order.UserID)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", line.ProductID, err)
		}

		if product.Quantity < line.Quantity {
			return nil, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Quantity,
				Requested:   line.Quantity,
			}
		}

		total = total.Add(product.Price.Mul(decimalFromInt(line.Quantity)))
		locked = append(locked, lockedProduct{product: product, line: line})
	}

	order.TotalAmount = total
	order.Status = models.OrderStatusPending

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (user_id, customer_name, customer_contact, status, total_amount, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		order.UserID, order.CustomerName, order.CustomerContact,
		order.Status, order.TotalAmount, order.IdempotencyKey)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdempotencyKey
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, lp := range locked {
		item := models.OrderItem{
			OrderID:   order.ID,
			ProductID: lp.product.ID,
			Quantity:  lp.line.Quantity,
			UnitPrice: lp.product.Price,
		}
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE products SET quantity = quantity - $1 WHERE id = $2",
			lp.line.Quantity, lp.product.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve stock for product %d: %w", lp.product.ID, err)
		}

		items = append(items, item)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetOrderByID retrieves an order by ID scoped to a user
func (s *Store) GetOrderByID(ctx context.Context, userID string, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND user_id = $2", id, userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE user_id = $1 AND idempotency_key = $2", userID, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrders retrieves all orders for a user, newest first
func (s *Store) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrdersInRange retrieves a user's orders created inside [start, end)
func (s *Store) GetOrdersInRange(ctx context.Context, userID string, start, end time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		`SELECT * FROM orders
		 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at`,
		userID, start, end)
	return orders, err
}

// UpdateOrderStatus updates an order's status
func (s *Store) UpdateOrderStatus(ctx context.Context, userID string, orderID int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2 AND user_id = $3",
		status, orderID, userID)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// DeleteOrder removes an order and its items, items first
func (s *Store) DeleteOrder(ctx context.Context, userID string, orderID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return fmt.Errorf("failed to delete order items: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM orders WHERE id = $1 AND user_id = $2", orderID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return requireRows(res)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// GetOrderItemsByOrderIDs retrieves items for a set of orders in one query
func (s *Store) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []models.OrderItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE order_id IN (?)", orderIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}
