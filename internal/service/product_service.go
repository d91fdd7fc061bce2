package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultLowStockThreshold applies when a product is created without one.
const DefaultLowStockThreshold = 5

// ProductService handles catalog management. Direct admin quantity edits
// are audited with inventory log entries, same as order reconciliation.
type ProductService struct {
	store  Store
	images ImageStore
	logger *zap.Logger
}

// NewProductService creates a new product service. images may be nil when
// image handling is disabled.
func NewProductService(st Store, images ImageStore) *ProductService {
	return &ProductService{
		store:  st,
		images: images,
		logger: util.GetLogger(),
	}
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	Name              string          `json:"name" binding:"required"`
	SKU               *string         `json:"sku"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Category          *string         `json:"category"`
	LowStockThreshold *int            `json:"low_stock_threshold"`
}

// UpdateProductRequest carries the editable fields of a product
type UpdateProductRequest struct {
	Name              string          `json:"name" binding:"required"`
	SKU               *string         `json:"sku"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Category          *string         `json:"category"`
	LowStockThreshold *int            `json:"low_stock_threshold"`
}

// CreateProduct validates and inserts a new product
func (s *ProductService) CreateProduct(ctx context.Context, userID string, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	if err := validateProductFields(req.Name, req.Quantity, req.Price, req.LowStockThreshold); err != nil {
		return nil, err
	}

	threshold := DefaultLowStockThreshold
	if req.LowStockThreshold != nil {
		threshold = *req.LowStockThreshold
	}

	product := &models.Product{
		UserID:            userID,
		Name:              req.Name,
		SKU:               req.SKU,
		Quantity:          req.Quantity,
		Price:             req.Price,
		Category:          req.Category,
		LowStockThreshold: threshold,
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct applies an edit. A quantity change made here is an admin
// stock adjustment and gets its own inventory log entry for the delta.
func (s *ProductService) UpdateProduct(ctx context.Context, userID string, productID int64, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct")
	defer span.End()

	if err := validateProductFields(req.Name, req.Quantity, req.Price, req.LowStockThreshold); err != nil {
		return nil, err
	}

	product, err := s.store.GetProductByID(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	oldQuantity := product.Quantity

	product.Name = req.Name
	product.SKU = req.SKU
	product.Quantity = req.Quantity
	product.Price = req.Price
	product.Category = req.Category
	if req.LowStockThreshold != nil {
		product.LowStockThreshold = *req.LowStockThreshold
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if delta := req.Quantity - oldQuantity; delta != 0 {
		changeType := models.ChangeTypeAdd
		if delta < 0 {
			changeType = models.ChangeTypeRemove
			delta = -delta
		}
		entry := &models.InventoryLog{
			UserID:          userID,
			ProductID:       product.ID,
			ChangeType:      changeType,
			QuantityChanged: delta,
			ProductName:     product.Name,
			ProductSKU:      product.SKUString(),
		}
		if err := s.store.CreateInventoryLog(ctx, entry); err != nil {
			s.logger.Error("Failed to log admin stock adjustment",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
		} else {
			util.InventoryLogEntriesTotal.WithLabelValues(changeType).Inc()
		}
	}

	return product, nil
}

// DeleteProduct removes a product and its stored image, if any
func (s *ProductService) DeleteProduct(ctx context.Context, userID string, productID int64) error {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct")
	defer span.End()

	product, err := s.store.GetProductByID(ctx, userID, productID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteProduct(ctx, userID, productID); err != nil {
		return err
	}

	if s.images != nil && product.ImageURL != nil {
		if err := s.images.Delete(ctx, s.images.KeyFromURL(*product.ImageURL)); err != nil {
			s.logger.Warn("Failed to delete product image",
				zap.Int64("product_id", productID),
				zap.Error(err))
		}
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", productID))
	return nil
}

// GetProduct retrieves a single product
func (s *ProductService) GetProduct(ctx context.Context, userID string, productID int64) (*models.Product, error) {
	return s.store.GetProductByID(ctx, userID, productID)
}

// ListProducts retrieves all of a user's products
func (s *ProductService) ListProducts(ctx context.Context, userID string) ([]models.Product, error) {
	return s.store.GetProducts(ctx, userID)
}

// ListLowStockProducts filters the user's products to the ones at or below
// their threshold. Evaluated fresh on every call, never cached.
func (s *ProductService) ListLowStockProducts(ctx context.Context, userID string) ([]models.Product, error) {
	products, err := s.store.GetProducts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FilterLowStock(products), nil
}

// FilterLowStock returns the products at or below their low stock threshold
func FilterLowStock(products []models.Product) []models.Product {
	low := make([]models.Product, 0)
	for _, p := range products {
		if p.IsLowStock() {
			low = append(low, p)
		}
	}
	return low
}

// UploadProductImage stores an image blob under a generated key, records
// the returned URL on the product and removes the previous blob when the
// image is being replaced.
func (s *ProductService) UploadProductImage(ctx context.Context, userID string, productID int64, filename string, r io.Reader) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UploadProductImage")
	defer span.End()

	if s.images == nil {
		return nil, fmt.Errorf("image storage is not configured")
	}

	product, err := s.store.GetProductByID(ctx, userID, productID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), filename)
	url, err := s.images.Save(ctx, key, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	oldURL := product.ImageURL
	product.ImageURL = &url
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to record image url: %w", err)
	}

	if oldURL != nil {
		if err := s.images.Delete(ctx, s.images.KeyFromURL(*oldURL)); err != nil {
			s.logger.Warn("Failed to delete replaced product image", zap.Error(err))
		}
	}

	return product, nil
}

func validateProductFields(name string, quantity int, price decimal.Decimal, threshold *int) error {
	if name == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if threshold != nil && *threshold < 0 {
		return fmt.Errorf("%w: low stock threshold cannot be negative", ErrValidation)
	}
	return nil
}
