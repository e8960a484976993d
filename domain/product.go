package domain

import "time"

// Product is a catalog item. Price and CostPrice are in the smallest
// currency unit. Stock never goes below zero.
type Product struct {
	ID        int64     `db:"id" json:"id"`
	Barcode   *string   `db:"barcode" json:"barcode,omitempty"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	CostPrice int64     `db:"cost_price" json:"cost_price"`
	Stock     int64     `db:"stock" json:"stock"`
	MinStock  int64     `db:"min_stock" json:"min_stock"`
	Category  string    `db:"category" json:"category"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports whether the product is at or below its reorder threshold.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// ProductBarcode is an alternate barcode pointing at a product, e.g. a new
// packaging run or a second supplier for the same item.
type ProductBarcode struct {
	ID          int64   `db:"id" json:"id"`
	Barcode     string  `db:"barcode" json:"barcode"`
	ProductID   int64   `db:"product_id" json:"product_id"`
	Description *string `db:"description" json:"description,omitempty"`
}
