package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/shopspring/decimal"
)

func decimalFromQty(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// fakeStore is an in-memory Store for service tests. It mirrors the
// transactional semantics of the real store: order creation either applies
// every line or none.
type fakeStore struct {
	mu sync.Mutex

	products map[int64]*models.Product
	orders   map[int64]*models.Order
	items    map[int64][]models.OrderItem
	logs     []models.InventoryLog

	nextProductID int64
	nextOrderID   int64
	nextItemID    int64
	nextLogID     int64

	failInventoryLog bool
	failAdjustStock  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[int64]*models.Product),
		orders:   make(map[int64]*models.Order),
		items:    make(map[int64][]models.OrderItem),
	}
}

func (f *fakeStore) CreateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextProductID++
	p.ID = f.nextProductID
	p.CreatedAt = time.Now()
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetProductByID(ctx context.Context, userID string, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok || p.UserID != userID {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetProducts(ctx context.Context, userID string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Product
	for _, p := range f.products {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetProductsByIDs(ctx context.Context, userID string, ids []int64) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok && p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.products[p.ID]
	if !ok || existing.UserID != p.UserID {
		return fmt.Errorf("product %d: %w", p.ID, store.ErrNotFound)
	}
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) AdjustProductQuantity(ctx context.Context, userID string, productID int64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAdjustStock {
		return errors.New("adjust failed")
	}
	p, ok := f.products[productID]
	if !ok || p.UserID != userID {
		return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	p.Quantity += delta
	return nil
}

func (f *fakeStore) DeleteProduct(ctx context.Context, userID string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok || p.UserID != userID {
		return fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) CreateInventoryLog(ctx context.Context, entry *models.InventoryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failInventoryLog {
		return errors.New("log write failed")
	}
	f.nextLogID++
	entry.ID = f.nextLogID
	entry.CreatedAt = time.Now()
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeStore) GetInventoryLogs(ctx context.Context, userID string, changeType string, productID int64) ([]models.InventoryLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.InventoryLog
	for i := len(f.logs) - 1; i >= 0; i-- {
		l := f.logs[i]
		if l.UserID != userID {
			continue
		}
		if changeType != "" && l.ChangeType != changeType {
			continue
		}
		if productID != 0 && l.ProductID != productID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeStore) CreateOrderTx(ctx context.Context, order *models.Order, lines []store.OrderLine) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if order.IdempotencyKey != "" {
		for _, o := range f.orders {
			if o.UserID == order.UserID && o.IdempotencyKey == order.IdempotencyKey {
				return nil, store.ErrDuplicateIdempotencyKey
			}
		}
	}

	// Validate every line before mutating anything.
	for _, line := range lines {
		p, ok := f.products[line.ProductID]
		if !ok || p.UserID != order.UserID {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, store.ErrNotFound)
		}
		if p.Quantity < line.Quantity {
			return nil, &store.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Quantity,
				Requested:   line.Quantity,
			}
		}
	}

	f.nextOrderID++
	order.ID = f.nextOrderID
	order.Status = models.OrderStatusPending
	order.CreatedAt = time.Now()

	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		p := f.products[line.ProductID]
		p.Quantity -= line.Quantity
		order.TotalAmount = order.TotalAmount.Add(p.Price.Mul(decimalFromQty(line.Quantity)))

		f.nextItemID++
		items = append(items, models.OrderItem{
			ID:        f.nextItemID,
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: p.Price,
		})
	}

	cp := *order
	f.orders[order.ID] = &cp
	f.items[order.ID] = append([]models.OrderItem(nil), items...)
	return items, nil
}

func (f *fakeStore) GetOrderByID(ctx context.Context, userID string, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[id]
	if !ok || o.UserID != userID {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetOrderByIdempotencyKey(ctx context.Context, userID, key string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, o := range f.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) GetOrdersInRange(ctx context.Context, userID string, start, end time.Time) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Order
	for _, o := range f.orders {
		if o.UserID != userID {
			continue
		}
		if o.CreatedAt.Before(start) || !o.CreatedAt.Before(end) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateOrderStatus(ctx context.Context, userID string, orderID int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok || o.UserID != userID {
		return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	o.Status = status
	return nil
}

func (f *fakeStore) DeleteOrder(ctx context.Context, userID string, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok || o.UserID != userID {
		return fmt.Errorf("order %d: %w", orderID, store.ErrNotFound)
	}
	delete(f.items, orderID)
	delete(f.orders, orderID)
	return nil
}

func (f *fakeStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]models.OrderItem(nil), f.items[orderID]...), nil
}

func (f *fakeStore) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.OrderItem
	for _, id := range orderIDs {
		out = append(out, f.items[id]...)
	}
	return out, nil
}

func (f *fakeStore) logCount(changeType string, productID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, l := range f.logs {
		if l.ChangeType == changeType && l.ProductID == productID {
			n++
		}
	}
	return n
}

func (f *fakeStore) productQuantity(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Quantity
}
