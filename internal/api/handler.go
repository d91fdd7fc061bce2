package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const userIDHeader = "X-User-ID"

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderService
	products *service.ProductService
	reports  *service.ReportService
}

// NewHandler creates a new HTTP handler
func NewHandler(orders *service.OrderService, products *service.ProductService, reports *service.ReportService) *Handler {
	return &Handler{
		orders:   orders,
		products: products,
		reports:  reports,
	}
}

// SetupRoutes sets up HTTP routes. uploadsDir, when non-empty, is served
// statically under /uploads for product images.
func (h *Handler) SetupRoutes(router *gin.Engine, uploadsDir string) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if uploadsDir != "" {
		router.Static("/uploads", uploadsDir)
	}

	v1 := router.Group("/api/v1")
	v1.Use(requireUser())
	{
		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/low-stock", h.listLowStockProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)
		v1.POST("/products/:id/image", h.uploadProductImage)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.DELETE("/orders/:id", h.deleteOrder)

		v1.GET("/inventory-logs", h.listInventoryLogs)
		v1.GET("/dashboard/stats", h.dashboardStats)
		v1.GET("/reports/sales.csv", h.exportSalesCSV)
	}
}

// requireUser scopes every request to the identity in the X-User-ID header
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing " + userIDHeader + " header",
			})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString("userID")
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createProduct handles product creation
func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	product, err := h.products.CreateProduct(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.products.ListProducts(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) listLowStockProducts(c *gin.Context) {
	products, err := h.products.ListLowStockProducts(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	product, err := h.products.GetProduct(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), currentUser(c), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.products.DeleteProduct(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// uploadProductImage accepts a multipart "image" file for a product
func (h *Handler) uploadProductImage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing image file", "details": err.Error()})
		return
	}
	defer file.Close()

	product, err := h.products.UploadProductImage(c.Request.Context(), currentUser(c), id, header.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), currentUser(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := h.orders.GetOrder(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// updateOrderStatus handles order status transitions
func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.orders.UpdateOrderStatus(c.Request.Context(), currentUser(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	warnings, err := h.orders.DeleteOrder(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id, "warnings": warnings})
}

func (h *Handler) listInventoryLogs(c *gin.Context) {
	var productID int64
	if raw := c.Query("product_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product_id"})
			return
		}
		productID = parsed
	}

	logs, err := h.reports.ListInventoryLogs(c.Request.Context(), currentUser(c), c.Query("type"), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) dashboardStats(c *gin.Context) {
	stats, err := h.reports.GetDashboardStats(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// exportSalesCSV streams the sales report for an inclusive date range
func (h *Handler) exportSalesCSV(c *gin.Context) {
	start, err := time.ParseInLocation("2006-01-02", c.Query("start"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start date, expected YYYY-MM-DD"})
		return
	}
	end, err := time.ParseInLocation("2006-01-02", c.Query("end"), time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end date, expected YYYY-MM-DD"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "End date before start date"})
		return
	}

	filename := fmt.Sprintf("sales-report-%s-to-%s.csv",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.reports.WriteSalesCSV(c.Request.Context(), c.Writer, currentUser(c), start, end); err != nil {
		// Headers may already be out; nothing more useful to send.
		_ = c.Error(err)
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors onto HTTP statuses: validation to 400,
// missing records to 404, stock insufficiency to 409, the rest to 500.
func respondError(c *gin.Context, err error) {
	var stockErr *store.InsufficientStockError
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNoRowsAffected):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
