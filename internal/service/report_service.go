package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SalesWindowDays is the trailing window of the dashboard sales series:
// today plus the preceding six calendar days.
const SalesWindowDays = 7

// ReportService produces the dashboard numbers, the daily sales series and
// the CSV sales export. Everything here is recomputed from the store on
// every call; nothing is cached or persisted.
type ReportService struct {
	store  Store
	logger *zap.Logger
}

// NewReportService creates a new report service
func NewReportService(st Store) *ReportService {
	return &ReportService{
		store:  st,
		logger: util.GetLogger(),
	}
}

// DashboardStats is the full dashboard payload
type DashboardStats struct {
	TotalProducts    int              `json:"total_products"`
	LowStockCount    int              `json:"low_stock_count"`
	LowStockProducts []models.Product `json:"low_stock_products"`
	TotalOrders      int              `json:"total_orders"`
	PendingOrders    int              `json:"pending_orders"`
	TodaysSales      decimal.Decimal  `json:"todays_sales"`
	TotalSales       decimal.Decimal  `json:"total_sales"`
	RecentOrders     []models.Order   `json:"recent_orders"`
	DailySales       []DaySales       `json:"daily_sales"`
}

// DaySales is one point of the trailing sales series
type DaySales struct {
	Label string          `json:"label"`
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// GetDashboardStats assembles the dashboard from the user's full product
// and order sets
func (s *ReportService) GetDashboardStats(ctx context.Context, userID string) (*DashboardStats, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.GetDashboardStats")
	defer span.End()

	products, err := s.store.GetProducts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	orders, err := s.store.GetOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}

	orderIDs := make([]int64, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}
	items, err := s.store.GetOrderItemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	itemsByOrder := groupItemsByOrder(items)

	lowStock := FilterLowStock(products)
	now := time.Now()

	stats := &DashboardStats{
		TotalProducts:    len(products),
		LowStockCount:    len(lowStock),
		LowStockProducts: topN(lowStock, 5),
		TotalOrders:      len(orders),
		TodaysSales:      decimal.Zero,
		TotalSales:       decimal.Zero,
		RecentOrders:     topN(orders, 5),
		DailySales:       DailySalesSeries(orders, itemsByOrder, now),
	}

	today := now.Format("2006-01-02")
	for i := range orders {
		order := &orders[i]
		if order.Status == models.OrderStatusPending {
			stats.PendingOrders++
		}
		if order.Status != models.OrderStatusCompleted {
			continue
		}
		total := orderItemsTotal(itemsByOrder[order.ID])
		stats.TotalSales = stats.TotalSales.Add(total)
		if order.CreatedAt.Local().Format("2006-01-02") == today {
			stats.TodaysSales = stats.TodaysSales.Add(total)
		}
	}

	return stats, nil
}

// DailySalesSeries buckets completed orders' item totals by the order's
// creation date in local time, over today and the preceding six days.
// The result always has exactly SalesWindowDays entries, oldest first,
// with zero totals for empty days.
func DailySalesSeries(orders []models.Order, itemsByOrder map[int64][]models.OrderItem, now time.Time) []DaySales {
	totals := make(map[string]decimal.Decimal, SalesWindowDays)
	for i := range orders {
		order := &orders[i]
		if order.Status != models.OrderStatusCompleted {
			continue
		}
		day := order.CreatedAt.Local().Format("2006-01-02")
		totals[day] = totals[day].Add(orderItemsTotal(itemsByOrder[order.ID]))
	}

	series := make([]DaySales, 0, SalesWindowDays)
	for offset := SalesWindowDays - 1; offset >= 0; offset-- {
		day := now.AddDate(0, 0, -offset)
		key := day.Format("2006-01-02")
		series = append(series, DaySales{
			Label: day.Format("Jan 2"),
			Date:  key,
			Total: totals[key],
		})
	}
	return series
}

// ListInventoryLogs retrieves the audit trail, newest first, optionally
// filtered by change type and product
func (s *ReportService) ListInventoryLogs(ctx context.Context, userID, changeType string, productID int64) ([]models.InventoryLog, error) {
	if changeType != "" && changeType != models.ChangeTypeAdd && changeType != models.ChangeTypeRemove {
		return nil, fmt.Errorf("%w: unknown change type %q", ErrValidation, changeType)
	}
	return s.store.GetInventoryLogs(ctx, userID, changeType, productID)
}

// csvHeader is the fixed column set of the sales export
var csvHeader = []string{
	"Order ID", "Customer Name", "Contact", "Status", "Date",
	"Product", "Quantity", "Unit Price", "Total Price",
}

// WriteSalesCSV streams the sales report for orders created inside the
// inclusive [start, end] date range: one row per order item, or one
// placeholder row for an order without items. Quoting follows RFC 4180,
// internal quotes doubled.
func (s *ReportService) WriteSalesCSV(ctx context.Context, w io.Writer, userID string, start, end time.Time) error {
	ctx, span := util.StartSpan(ctx, "ReportService.WriteSalesCSV")
	defer span.End()

	orders, err := s.store.GetOrdersInRange(ctx, userID, start, end.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}

	orderIDs := make([]int64, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}
	items, err := s.store.GetOrderItemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	itemsByOrder := groupItemsByOrder(items)

	products, err := s.productNames(ctx, userID, items)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	for _, row := range SalesReportRows(orders, itemsByOrder, products) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	util.CSVExportsTotal.Inc()
	s.logger.Info("Sales report exported",
		zap.String("user_id", userID),
		zap.Int("orders", len(orders)))
	return nil
}

// SalesReportRows flattens orders and items into CSV rows, header first.
// Unit price is the price captured on the order item at order time.
func SalesReportRows(orders []models.Order, itemsByOrder map[int64][]models.OrderItem, productNames map[int64]string) [][]string {
	rows := [][]string{csvHeader}

	for i := range orders {
		order := &orders[i]
		date := order.CreatedAt.Local().Format("2006-01-02")

		items := itemsByOrder[order.ID]
		if len(items) == 0 {
			rows = append(rows, []string{
				strconv.FormatInt(order.ID, 10), order.CustomerName, order.CustomerContact,
				order.Status, date, "No Items", "0", "0", "0",
			})
			continue
		}

		for _, item := range items {
			name, ok := productNames[item.ProductID]
			if !ok {
				name = "Unknown"
			}
			rows = append(rows, []string{
				strconv.FormatInt(order.ID, 10),
				order.CustomerName,
				order.CustomerContact,
				order.Status,
				date,
				name,
				strconv.Itoa(item.Quantity),
				item.UnitPrice.StringFixed(2),
				item.Subtotal().StringFixed(2),
			})
		}
	}
	return rows
}

func (s *ReportService) productNames(ctx context.Context, userID string, items []models.OrderItem) (map[int64]string, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.store.GetProductsByIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	names := make(map[int64]string, len(products))
	for i := range products {
		names[products[i].ID] = products[i].Name
	}
	return names, nil
}

func groupItemsByOrder(items []models.OrderItem) map[int64][]models.OrderItem {
	byOrder := make(map[int64][]models.OrderItem)
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	return byOrder
}

func orderItemsTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Subtotal())
	}
	return total
}

func topN[T any](in []T, n int) []T {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
