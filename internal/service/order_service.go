package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles the order lifecycle and the stock reconciliation
// that goes with it: reservation at creation, log emission at completion,
// reversal at cancellation or deletion of a completed order.
type OrderService struct {
	store          Store
	idempotency    IdempotencyCache
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service. idempotency and
// eventPublisher may be nil; the service then relies on the database
// unique key alone and skips event publishing.
func NewOrderService(st Store, idempotency IdempotencyCache, eventPublisher EventPublisher) *OrderService {
	return &OrderService{
		store:          st,
		idempotency:    idempotency,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerName    string             `json:"customer_name" binding:"required"`
	CustomerContact string             `json:"customer_contact"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	IdempotencyKey  string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest represents one requested line
type OrderItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// OrderResponse is an order with its items and a recomputed total
type OrderResponse struct {
	Order    *models.Order      `json:"order"`
	Items    []models.OrderItem `json:"items"`
	Warnings []string           `json:"warnings,omitempty"`
}

// CreateOrder validates the request and creates the order, its items and
// the stock decrements in one transaction. Insufficient stock on any line
// rejects the whole order before any mutation. No inventory log entry is
// written at creation: the decrement is a reservation, logged only when the
// order completes.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req *CreateOrderRequest) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateCreateOrder(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	if s.maybeSeen(ctx, req.IdempotencyKey) {
		existing, err := s.findDuplicate(ctx, userID, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	order := &models.Order{
		UserID:          userID,
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		IdempotencyKey:  req.IdempotencyKey,
	}

	lines := make([]store.OrderLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = store.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	items, err := s.store.CreateOrderTx(ctx, order, lines)
	if errors.Is(err, store.ErrDuplicateIdempotencyKey) {
		// Raced with another request carrying the same key, or the cache
		// missed. The stored order wins.
		existing, dupErr := s.findDuplicate(ctx, userID, req.IdempotencyKey)
		if dupErr != nil {
			return nil, dupErr
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: idempotency key already in use", ErrValidation)
		}
		return existing, nil
	}
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("create_failed").Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int("items", len(items)))

	if s.idempotency != nil {
		if err := s.idempotency.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, 24*time.Hour); err != nil {
			s.logger.Warn("Failed to cache idempotency key", zap.Error(err))
		}
	}

	if s.eventPublisher != nil {
		event := &models.OrderCreatedEvent{
			BaseEvent:    models.NewBaseEvent(models.EventTypeOrderCreated),
			OrderID:      order.ID,
			UserID:       userID,
			CustomerName: order.CustomerName,
			TotalAmount:  order.TotalAmount,
			Items:        toEventItems(items),
		}
		if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return &OrderResponse{Order: order, Items: items}, nil
}

// UpdateOrderStatus transitions an order between statuses. Only two
// transitions carry inventory side effects:
//
//	pending -> completed: one "remove" log entry per item, stock untouched
//	(it was already decremented at creation).
//	anything-but-cancelled -> cancelled: one "add" log entry per item and
//	the item quantity restored to the product.
//
// Per-item side effects are applied independently; a failing item is
// reported in the response warnings and does not block the remaining items.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, userID string, orderID int64, newStatus string) (*OrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	if !models.ValidOrderStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}

	order, err := s.store.GetOrderByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	oldStatus := order.Status

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	if err := s.store.UpdateOrderStatus(ctx, userID, orderID, newStatus); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	order.Status = newStatus

	var warnings []string
	switch {
	case newStatus == models.OrderStatusCompleted && oldStatus == models.OrderStatusPending:
		warnings = s.logFulfillment(ctx, userID, items)
		util.OrdersCompletedTotal.Inc()
		s.publishCompleted(ctx, order, items)

	case newStatus == models.OrderStatusCancelled && oldStatus != models.OrderStatusCancelled:
		warnings = s.reverseReservation(ctx, userID, items)
		util.OrdersCancelledTotal.Inc()
		s.publishCancelled(ctx, order, items)
	}

	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", oldStatus),
		zap.String("to", newStatus),
		zap.Int("warnings", len(warnings)))

	return &OrderResponse{Order: order, Items: items, Warnings: warnings}, nil
}

// DeleteOrder removes the order's items, then the order. An order that was
// completed at deletion time gets the same per-item reversal as a
// cancellation; pending and cancelled orders delete with no stock effect.
func (s *OrderService) DeleteOrder(ctx context.Context, userID string, orderID int64) ([]string, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	if err := s.store.DeleteOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}

	var warnings []string
	if order.Status == models.OrderStatusCompleted {
		warnings = s.reverseReservation(ctx, userID, items)
	}

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted",
		zap.Int64("order_id", orderID),
		zap.String("was_status", order.Status))

	if s.eventPublisher != nil {
		event := &models.OrderDeletedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderDeleted),
			OrderID:   orderID,
			UserID:    userID,
			WasStatus: order.Status,
			Items:     toEventItems(items),
		}
		if err := s.eventPublisher.PublishOrderDeleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderDeleted event", zap.Error(err))
		}
	}

	return warnings, nil
}

// GetOrder retrieves an order with its items
func (s *OrderService) GetOrder(ctx context.Context, userID string, orderID int64) (*OrderResponse, error) {
	order, err := s.store.GetOrderByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &OrderResponse{Order: order, Items: items}, nil
}

// ListOrders retrieves all of a user's orders with their items
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]OrderResponse, error) {
	orders, err := s.store.GetOrders(ctx, userID)
	if err != nil {
		return nil, err
	}

	orderIDs := make([]int64, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}

	items, err := s.store.GetOrderItemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[int64][]models.OrderItem)
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	responses := make([]OrderResponse, len(orders))
	for i := range orders {
		responses[i] = OrderResponse{Order: &orders[i], Items: byOrder[orders[i].ID]}
	}
	return responses, nil
}

// logFulfillment appends one "remove" log entry per item. Stock itself was
// already decremented at creation, so products are not touched here.
func (s *OrderService) logFulfillment(ctx context.Context, userID string, items []models.OrderItem) []string {
	products := s.productsForItems(ctx, userID, items)

	var warnings []string
	for _, item := range items {
		if err := s.logInventoryChange(ctx, userID, item.ProductID, models.ChangeTypeRemove, item.Quantity, products[item.ProductID]); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to log stock removal for product %d: %v", item.ProductID, err))
		}
	}
	return warnings
}

// reverseReservation appends one "add" log entry per item and restores the
// item quantity to the product. Each item is handled independently.
func (s *OrderService) reverseReservation(ctx context.Context, userID string, items []models.OrderItem) []string {
	products := s.productsForItems(ctx, userID, items)

	var warnings []string
	for _, item := range items {
		if err := s.logInventoryChange(ctx, userID, item.ProductID, models.ChangeTypeAdd, item.Quantity, products[item.ProductID]); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to log stock restore for product %d: %v", item.ProductID, err))
		}

		if err := s.store.AdjustProductQuantity(ctx, userID, item.ProductID, item.Quantity); err != nil {
			util.ReconciliationFailuresTotal.WithLabelValues("stock_restore").Inc()
			s.logger.Error("Failed to restore product stock",
				zap.Int64("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("failed to restore stock for product %d: %v", item.ProductID, err))
			continue
		}
		util.StockRestoredTotal.Add(float64(item.Quantity))
	}
	return warnings
}

// logInventoryChange appends a single audit entry with denormalized product
// name and SKU. The product may have been deleted since the order was
// placed; the entry is still written, with empty display fields.
func (s *OrderService) logInventoryChange(ctx context.Context, userID string, productID int64, changeType string, quantity int, product *models.Product) error {
	entry := &models.InventoryLog{
		UserID:          userID,
		ProductID:       productID,
		ChangeType:      changeType,
		QuantityChanged: quantity,
	}
	if product != nil {
		entry.ProductName = product.Name
		entry.ProductSKU = product.SKUString()
	}

	if err := s.store.CreateInventoryLog(ctx, entry); err != nil {
		util.ReconciliationFailuresTotal.WithLabelValues("inventory_log").Inc()
		s.logger.Error("Failed to write inventory log",
			zap.Int64("product_id", productID),
			zap.String("change_type", changeType),
			zap.Error(err))
		return err
	}

	util.InventoryLogEntriesTotal.WithLabelValues(changeType).Inc()
	return nil
}

func (s *OrderService) productsForItems(ctx context.Context, userID string, items []models.OrderItem) map[int64]*models.Product {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	byID := make(map[int64]*models.Product, len(ids))
	products, err := s.store.GetProductsByIDs(ctx, userID, ids)
	if err != nil {
		s.logger.Warn("Failed to load products for reconciliation", zap.Error(err))
		return byID
	}
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID
}

// maybeSeen consults the idempotency cache. Without a cache, or on a cache
// error, the answer is yes so the authoritative DB lookup runs.
func (s *OrderService) maybeSeen(ctx context.Context, key string) bool {
	if s.idempotency == nil {
		return true
	}
	cached, err := s.idempotency.CheckIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency cache check failed, falling back to DB", zap.Error(err))
		return true
	}
	return cached
}

func (s *OrderService) findDuplicate(ctx context.Context, userID, key string) (*OrderResponse, error) {
	existing, err := s.store.GetOrderByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing == nil {
		return nil, nil
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", existing.ID))

	items, err := s.store.GetOrderItemsByOrderID(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	return &OrderResponse{Order: existing, Items: items}, nil
}

func (s *OrderService) publishCompleted(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.eventPublisher == nil {
		return
	}
	event := &models.OrderCompletedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderCompleted),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Items:     toEventItems(items),
	}
	if err := s.eventPublisher.PublishOrderCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}
}

func (s *OrderService) publishCancelled(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.eventPublisher == nil {
		return
	}
	event := &models.OrderCancelledEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Items:     toEventItems(items),
	}
	if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}

func validateCreateOrder(req *CreateOrderRequest) error {
	if req.CustomerName == "" {
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for _, item := range req.Items {
		if item.ProductID == 0 {
			return fmt.Errorf("%w: item product is required", ErrValidation)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be positive", ErrValidation)
		}
	}
	return nil
}

func toEventItems(items []models.OrderItem) []models.OrderItemData {
	data := make([]models.OrderItemData, len(items))
	for i, item := range items {
		data[i] = models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return data
}
