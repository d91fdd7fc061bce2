package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"inventory-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	require.NoError(t, err)
	return d
}

func TestDailySalesSeriesShape(t *testing.T) {
	now := day(t, "2026-08-31")

	series := DailySalesSeries(nil, nil, now)
	require.Len(t, series, SalesWindowDays)

	assert.Equal(t, "2026-08-25", series[0].Date)
	assert.Equal(t, "2026-08-31", series[len(series)-1].Date)
	assert.Equal(t, "Aug 25", series[0].Label)
	for _, point := range series {
		assert.True(t, point.Total.IsZero())
	}
}

func TestDailySalesSeriesBucketsCompletedOrders(t *testing.T) {
	now := day(t, "2026-08-31")

	orders := []models.Order{
		{ID: 1, Status: models.OrderStatusCompleted, CreatedAt: now.Add(10 * time.Hour)},
		{ID: 2, Status: models.OrderStatusCompleted, CreatedAt: now.AddDate(0, 0, -2).Add(8 * time.Hour)},
		{ID: 3, Status: models.OrderStatusPending, CreatedAt: now.Add(11 * time.Hour)},
		{ID: 4, Status: models.OrderStatusCompleted, CreatedAt: now.AddDate(0, 0, -10)},
	}
	itemsByOrder := map[int64][]models.OrderItem{
		1: {{OrderID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("4.00")}},
		2: {{OrderID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("9.00")}},
		3: {{OrderID: 3, Quantity: 5, UnitPrice: decimal.RequireFromString("1.00")}},
		4: {{OrderID: 4, Quantity: 1, UnitPrice: decimal.RequireFromString("100.00")}},
	}

	series := DailySalesSeries(orders, itemsByOrder, now)
	require.Len(t, series, SalesWindowDays)

	byDate := make(map[string]decimal.Decimal, len(series))
	for _, point := range series {
		byDate[point.Date] = point.Total
	}

	// Today holds only the completed order; the pending one is excluded.
	assert.True(t, byDate["2026-08-31"].Equal(decimal.RequireFromString("8.00")))
	assert.True(t, byDate["2026-08-29"].Equal(decimal.RequireFromString("9.00")))
	// The order outside the window contributes nothing.
	assert.True(t, byDate["2026-08-25"].IsZero())
}

func TestDailySalesSeriesIsStable(t *testing.T) {
	now := day(t, "2026-08-31")
	orders := []models.Order{
		{ID: 1, Status: models.OrderStatusCompleted, CreatedAt: now},
	}
	itemsByOrder := map[int64][]models.OrderItem{
		1: {{OrderID: 1, Quantity: 3, UnitPrice: decimal.NewFromInt(2)}},
	}

	first := DailySalesSeries(orders, itemsByOrder, now)
	second := DailySalesSeries(orders, itemsByOrder, now)
	assert.Equal(t, first, second)
}

func TestSalesReportRows(t *testing.T) {
	created := day(t, "2026-08-20").Add(9 * time.Hour)
	orders := []models.Order{
		{ID: 1, CustomerName: "Alice", CustomerContact: "555-0101", Status: models.OrderStatusCompleted, CreatedAt: created},
		{ID: 2, CustomerName: "Bob", Status: models.OrderStatusPending, CreatedAt: created},
	}
	itemsByOrder := map[int64][]models.OrderItem{
		1: {
			{OrderID: 1, ProductID: 7, Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")},
			{OrderID: 1, ProductID: 8, Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}
	names := map[int64]string{7: "Widget", 8: "Gadget"}

	rows := SalesReportRows(orders, itemsByOrder, names)
	require.Len(t, rows, 4)

	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"1", "Alice", "555-0101", "completed", "2026-08-20", "Widget", "2", "4.50", "9.00"}, rows[1])
	assert.Equal(t, []string{"1", "Alice", "555-0101", "completed", "2026-08-20", "Gadget", "1", "10.00", "10.00"}, rows[2])
	// An order without items still appears, as a placeholder row.
	assert.Equal(t, []string{"2", "Bob", "", "pending", "2026-08-20", "No Items", "0", "0", "0"}, rows[3])
}

func TestSalesReportRowUnknownProduct(t *testing.T) {
	orders := []models.Order{
		{ID: 1, CustomerName: "Alice", Status: models.OrderStatusCompleted, CreatedAt: time.Now()},
	}
	itemsByOrder := map[int64][]models.OrderItem{
		1: {{OrderID: 1, ProductID: 99, Quantity: 1, UnitPrice: decimal.NewFromInt(5)}},
	}

	rows := SalesReportRows(orders, itemsByOrder, nil)
	require.Len(t, rows, 2)
	assert.Equal(t, "Unknown", rows[1][5])
}

func TestWriteSalesCSVQuoting(t *testing.T) {
	fs := newFakeStore()
	orderSvc := NewOrderService(fs, nil, nil)
	reportSvc := NewReportService(fs)

	p := seedProduct(t, fs, `Widget "Deluxe", 2nd gen`, 10, "4.00", 5)
	_, err := orderSvc.CreateOrder(context.Background(), testUser, &CreateOrderRequest{
		CustomerName: "Alice, Inc.",
		Items:        []OrderItemRequest{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	today := time.Now()
	err = reportSvc.WriteSalesCSV(context.Background(), &buf, testUser, today.AddDate(0, 0, -1), today)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Order ID,Customer Name")
	assert.Contains(t, out, `"Alice, Inc."`)
	// Internal quotes are doubled per RFC 4180.
	assert.Contains(t, out, `"Widget ""Deluxe"", 2nd gen"`)
}

func TestGetDashboardStats(t *testing.T) {
	fs := newFakeStore()
	orderSvc := NewOrderService(fs, nil, nil)
	reportSvc := NewReportService(fs)

	a := seedProduct(t, fs, "Product A", 10, "4.00", 5)
	seedProduct(t, fs, "Product B", 3, "9.00", 5)

	resp, err := orderSvc.CreateOrder(context.Background(), testUser, &CreateOrderRequest{
		CustomerName: "Alice",
		Items:        []OrderItemRequest{{ProductID: a.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	_, err = orderSvc.CreateOrder(context.Background(), testUser, &CreateOrderRequest{
		CustomerName: "Bob",
		Items:        []OrderItemRequest{{ProductID: a.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = orderSvc.UpdateOrderStatus(context.Background(), testUser, resp.Order.ID, models.OrderStatusCompleted)
	require.NoError(t, err)

	stats, err := reportSvc.GetDashboardStats(context.Background(), testUser)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalProducts)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 1, stats.PendingOrders)
	// Product B at 3 and Product A down to 5, both at or below threshold.
	assert.Equal(t, 2, stats.LowStockCount)

	// The completed order for 4 units at 4.00 counts toward today and total.
	assert.True(t, stats.TodaysSales.Equal(decimal.RequireFromString("16.00")))
	assert.True(t, stats.TotalSales.Equal(decimal.RequireFromString("16.00")))
	require.Len(t, stats.DailySales, SalesWindowDays)
	assert.True(t, stats.DailySales[SalesWindowDays-1].Total.Equal(decimal.RequireFromString("16.00")))
}

func TestListInventoryLogsRejectsUnknownType(t *testing.T) {
	fs := newFakeStore()
	svc := NewReportService(fs)

	_, err := svc.ListInventoryLogs(context.Background(), testUser, "transfer", 0)
	assert.ErrorIs(t, err, ErrValidation)
}
