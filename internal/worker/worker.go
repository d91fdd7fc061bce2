package worker

import (
	"context"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/service"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// AlertWorker consumes order lifecycle events and raises a low stock alert
// for every affected product at or below its threshold. Alerts are logged
// and republished as StockLow events; they never mutate stock.
type AlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        service.Store
	publisher    *broker.EventPublisher
	logger       *zap.Logger
}

// NewAlertWorker creates a new alert worker
func NewAlertWorker(consumer *broker.Consumer, st service.Store, publisher *broker.EventPublisher) *AlertWorker {
	w := &AlertWorker{
		consumer:  consumer,
		store:     st,
		publisher: publisher,
		logger:    util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(func(ctx context.Context, e *models.OrderCreatedEvent) error {
		return w.checkProducts(ctx, e.UserID, e.Items)
	})
	eventHandler.OnOrderCompleted(func(ctx context.Context, e *models.OrderCompletedEvent) error {
		return w.checkProducts(ctx, e.UserID, e.Items)
	})
	eventHandler.OnStockLow(func(ctx context.Context, e *models.StockLowEvent) error {
		w.logger.Warn("Low stock alert",
			zap.Int64("product_id", e.ProductID),
			zap.String("product", e.ProductName),
			zap.Int("quantity", e.Quantity),
			zap.Int("threshold", e.Threshold))
		return nil
	})
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *AlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting low stock alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AlertWorker) Stop() error {
	w.logger.Info("Stopping low stock alert worker")
	return w.consumer.Close()
}

// checkProducts re-reads the products named in an event and publishes a
// StockLow event for each one at or below its threshold
func (w *AlertWorker) checkProducts(ctx context.Context, userID string, items []models.OrderItemData) error {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := w.store.GetProductsByIDs(ctx, userID, ids)
	if err != nil {
		return err
	}

	for i := range products {
		p := &products[i]
		if !p.IsLowStock() {
			continue
		}

		util.LowStockAlertsTotal.Inc()
		w.logger.Warn("Product at or below low stock threshold",
			zap.Int64("product_id", p.ID),
			zap.String("product", p.Name),
			zap.Int("quantity", p.Quantity),
			zap.Int("threshold", p.LowStockThreshold))

		if w.publisher == nil {
			continue
		}
		event := &models.StockLowEvent{
			BaseEvent:   models.NewBaseEvent(models.EventTypeStockLow),
			ProductID:   p.ID,
			UserID:      userID,
			ProductName: p.Name,
			Quantity:    p.Quantity,
			Threshold:   p.LowStockThreshold,
		}
		if err := w.publisher.PublishStockLow(ctx, event); err != nil {
			w.logger.Error("Failed to publish StockLow event", zap.Error(err))
		}
	}
	return nil
}
