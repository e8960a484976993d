package catalog

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/m/domain"
	"kasirpos/m/internal/database"
	"kasirpos/m/internal/migrations"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return db
}

func insertProduct(t *testing.T, db *sqlx.DB, name string, barcode *string, price, stock, minStock int64, active bool) int64 {
	t.Helper()
	activeInt := 0
	if active {
		activeInt = 1
	}
	var id int64
	err := db.QueryRowx(
		`INSERT INTO products (barcode, name, price, cost_price, stock, min_stock, is_active)
         VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		barcode, name, price, price/2, stock, minStock, activeInt,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func strPtr(s string) *string { return &s }

func TestFindForSale(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	ctx := context.Background()

	activeID := insertProduct(t, db, "Kopi Sachet", nil, 2000, 50, 5, true)
	inactiveID := insertProduct(t, db, "Discontinued", nil, 1000, 10, 5, false)

	p, err := svc.FindForSale(ctx, activeID)
	require.NoError(t, err)
	assert.Equal(t, "Kopi Sachet", p.Name)
	assert.Equal(t, int64(50), p.Stock)

	_, err = svc.FindForSale(ctx, inactiveID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = svc.FindForSale(ctx, 99999)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestFindByBarcode(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	ctx := context.Background()

	id := insertProduct(t, db, "Mie Instan", strPtr("8991002101"), 3500, 100, 10, true)
	_, err := db.Exec(`INSERT INTO product_barcodes (barcode, product_id, description) VALUES ($1, $2, $3)`,
		"8991002102", id, "kemasan baru")
	require.NoError(t, err)

	t.Run("primary barcode", func(t *testing.T) {
		p, err := svc.FindByBarcode(ctx, "8991002101")
		require.NoError(t, err)
		assert.Equal(t, id, p.ID)
	})

	t.Run("alias barcode", func(t *testing.T) {
		p, err := svc.FindByBarcode(ctx, "8991002102")
		require.NoError(t, err)
		assert.Equal(t, id, p.ID)
	})

	t.Run("unknown barcode", func(t *testing.T) {
		_, err := svc.FindByBarcode(ctx, "0000000000")
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})
}

func TestListAndLowStock(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	ctx := context.Background()

	insertProduct(t, db, "Plenty", nil, 1000, 100, 5, true)
	insertProduct(t, db, "Running Low", nil, 1000, 3, 5, true)
	insertProduct(t, db, "Hidden", nil, 1000, 0, 5, false)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Running Low", low[0].Name)
	assert.True(t, low[0].IsLowStock())
}
