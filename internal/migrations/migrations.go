package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Run creates the database schema required for the POS backend.
func Run(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            full_name TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'kasir',
            is_active INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS products (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            barcode TEXT UNIQUE,
            name TEXT NOT NULL,
            price INTEGER NOT NULL CHECK (price >= 0),
            cost_price INTEGER NOT NULL DEFAULT 0 CHECK (cost_price >= 0),
            stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
            min_stock INTEGER NOT NULL DEFAULT 5,
            category TEXT NOT NULL DEFAULT 'Makanan',
            is_active INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS product_barcodes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            barcode TEXT NOT NULL UNIQUE,
            product_id INTEGER NOT NULL,
            description TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(product_id) REFERENCES products(id)
        );`,
		`CREATE TABLE IF NOT EXISTS discounts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL,
            discount_type TEXT NOT NULL DEFAULT 'percentage',
            value INTEGER NOT NULL CHECK (value >= 0),
            min_purchase INTEGER NOT NULL DEFAULT 0,
            max_discount INTEGER,
            is_active INTEGER NOT NULL DEFAULT 1,
            valid_from DATETIME,
            valid_until DATETIME,
            usage_limit INTEGER,
            usage_count INTEGER NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            receipt_no TEXT NOT NULL UNIQUE,
            user_id INTEGER,
            customer_id INTEGER,
            discount_id INTEGER,
            subtotal INTEGER NOT NULL,
            discount_amount INTEGER NOT NULL DEFAULT 0,
            total INTEGER NOT NULL CHECK (total >= 0),
            cost_total INTEGER NOT NULL DEFAULT 0,
            paid INTEGER NOT NULL,
            change INTEGER NOT NULL,
            payment_method TEXT NOT NULL DEFAULT 'cash',
            notes TEXT,
            voided_at DATETIME,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(user_id) REFERENCES users(id),
            FOREIGN KEY(discount_id) REFERENCES discounts(id)
        );`,
		`CREATE TABLE IF NOT EXISTS transaction_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            transaction_id INTEGER NOT NULL,
            product_id INTEGER NOT NULL,
            product_name TEXT NOT NULL,
            quantity INTEGER NOT NULL CHECK (quantity >= 1),
            price_at_sale INTEGER NOT NULL,
            cost_at_sale INTEGER NOT NULL DEFAULT 0,
            subtotal INTEGER NOT NULL,
            FOREIGN KEY(transaction_id) REFERENCES transactions(id),
            FOREIGN KEY(product_id) REFERENCES products(id)
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
