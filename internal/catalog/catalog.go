package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"kasirpos/m/domain"
)

const productColumns = `id, barcode, name, price, cost_price, stock, min_stock, category, is_active, created_at, updated_at`

// Service gives read-only access to the product catalog. Catalog
// administration lives outside this service; nothing here writes.
type Service struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// FindForSale returns an active product by id. Inactive and missing
// products are both reported as not found so they cannot be sold.
func (s *Service) FindForSale(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := s.db.GetContext(ctx, &p,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND is_active = 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %d: %w", id, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("find product %d: %w", id, err)
	}
	return p, nil
}

// FindByBarcode resolves a scanned code against the primary barcode and
// the alias table.
func (s *Service) FindByBarcode(ctx context.Context, code string) (domain.Product, error) {
	code = strings.TrimSpace(code)
	var p domain.Product
	err := s.db.GetContext(ctx, &p,
		`SELECT `+productColumns+` FROM products WHERE barcode = $1 AND is_active = 1`, code)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("find product by barcode: %w", err)
	}

	err = s.db.GetContext(ctx, &p, `SELECT p.id, p.barcode, p.name, p.price, p.cost_price, p.stock, p.min_stock, p.category, p.is_active, p.created_at, p.updated_at
                FROM products p
                JOIN product_barcodes pb ON pb.product_id = p.id
                WHERE pb.barcode = $1 AND p.is_active = 1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("barcode %q: %w", code, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("find product by alias barcode: %w", err)
	}
	return p, nil
}

// List returns all active products ordered by name.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	err := s.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// LowStock returns active products at or below their minimum stock level.
func (s *Service) LowStock(ctx context.Context) ([]domain.Product, error) {
	products := []domain.Product{}
	err := s.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products WHERE is_active = 1 AND stock <= min_stock ORDER BY stock`)
	if err != nil {
		return nil, fmt.Errorf("list low-stock products: %w", err)
	}
	return products, nil
}
