package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNoRowsAffected is returned when an update or delete matched nothing,
// so the caller can tell a no-op write from a successful one.
var ErrNoRowsAffected = errors.New("no rows affected")

// ErrNotFound wraps every lookup miss so callers can map it uniformly.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// CreateProduct inserts a product for a user
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (user_id, name, sku, quantity, price, category, image_url, low_stock_threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, p, query,
		p.UserID, p.Name, p.SKU, p.Quantity, p.Price, p.Category, p.ImageURL, p.LowStockThreshold)
}

// GetProductByID retrieves a product by ID scoped to a user
func (s *Store) GetProductByID(ctx context.Context, userID string, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 AND user_id = $2", id, userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products for a user
func (s *Store) GetProducts(ctx context.Context, userID string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE user_id = $1 ORDER BY id", userID)
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs scoped to a user
func (s *Store) GetProductsByIDs(ctx context.Context, userID string, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE user_id = ? AND id IN (?)", userID, ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// UpdateProduct updates product fields
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, sku = $2, quantity = $3, price = $4, category = $5,
		    image_url = $6, low_stock_threshold = $7
		WHERE id = $8 AND user_id = $9`,
		p.Name, p.SKU, p.Quantity, p.Price, p.Category, p.ImageURL, p.LowStockThreshold,
		p.ID, p.UserID)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// AdjustProductQuantity applies a signed stock delta to a product
func (s *Store) AdjustProductQuantity(ctx context.Context, userID string, productID int64, delta int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + $1 WHERE id = $2 AND user_id = $3",
		delta, productID, userID)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM products WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	return requireRows(res)
}

// CreateInventoryLog appends an inventory log entry. Entries are never
// updated or deleted.
func (s *Store) CreateInventoryLog(ctx context.Context, entry *models.InventoryLog) error {
	query := `
		INSERT INTO inventory_logs (user_id, product_id, change_type, quantity_changed, product_name, product_sku)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, entry, query,
		entry.UserID, entry.ProductID, entry.ChangeType, entry.QuantityChanged,
		entry.ProductName, entry.ProductSKU)
}

// GetInventoryLogs retrieves log entries for a user, newest first.
// changeType and productID filter when non-zero.
func (s *Store) GetInventoryLogs(ctx context.Context, userID string, changeType string, productID int64) ([]models.InventoryLog, error) {
	query := "SELECT * FROM inventory_logs WHERE user_id = $1"
	args := []interface{}{userID}

	if changeType != "" {
		args = append(args, changeType)
		query += fmt.Sprintf(" AND change_type = $%d", len(args))
	}
	if productID != 0 {
		args = append(args, productID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var logs []models.InventoryLog
	err := s.db.SelectContext(ctx, &logs, query, args...)
	return logs, err
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
