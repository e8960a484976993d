package promo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

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

func insertDiscount(t *testing.T, db *sqlx.DB, d domain.Discount) int64 {
	t.Helper()
	active := 0
	if d.IsActive {
		active = 1
	}
	var id int64
	err := db.QueryRowx(
		`INSERT INTO discounts (code, name, discount_type, value, min_purchase, max_discount, is_active, valid_from, valid_until, usage_limit, usage_count)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		d.Code, d.Name, d.Type, d.Value, d.MinPurchase, d.MaxDiscount, active,
		d.ValidFrom, d.ValidUntil, d.UsageLimit, d.UsageCount,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func int64Ptr(v int64) *int64 { return &v }

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		discount domain.Discount
		subtotal int64
		want     int64
	}{
		{
			name:     "percentage",
			discount: domain.Discount{Type: domain.DiscountPercentage, Value: 10},
			subtotal: 100000,
			want:     10000,
		},
		{
			name:     "percentage floors",
			discount: domain.Discount{Type: domain.DiscountPercentage, Value: 3},
			subtotal: 999,
			want:     29,
		},
		{
			name:     "percentage capped at max discount",
			discount: domain.Discount{Type: domain.DiscountPercentage, Value: 10, MaxDiscount: int64Ptr(20000)},
			subtotal: 500000,
			want:     20000,
		},
		{
			name:     "fixed",
			discount: domain.Discount{Type: domain.DiscountFixed, Value: 5000},
			subtotal: 30000,
			want:     5000,
		},
		{
			name:     "fixed never exceeds subtotal",
			discount: domain.Discount{Type: domain.DiscountFixed, Value: 5000},
			subtotal: 3000,
			want:     3000,
		},
		{
			name:     "below minimum purchase yields zero",
			discount: domain.Discount{Type: domain.DiscountPercentage, Value: 10, MinPurchase: 50000},
			subtotal: 20000,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.discount, tt.subtotal))
		})
	}
}

func TestValidate(t *testing.T) {
	db := newTestDB(t)
	svc := New(db, zaptest.NewLogger(t))
	ctx := context.Background()
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	insertDiscount(t, db, domain.Discount{
		Code: "WELCOME10", Name: "Welcome", Type: domain.DiscountPercentage,
		Value: 10, MinPurchase: 50000, MaxDiscount: int64Ptr(20000), IsActive: true,
	})
	insertDiscount(t, db, domain.Discount{
		Code: "EXPIRED", Name: "Expired", Type: domain.DiscountFixed,
		Value: 1000, IsActive: true, ValidUntil: &past,
	})
	insertDiscount(t, db, domain.Discount{
		Code: "USEDUP", Name: "Used up", Type: domain.DiscountFixed,
		Value: 1000, IsActive: true, UsageLimit: int64Ptr(3), UsageCount: 3,
	})
	insertDiscount(t, db, domain.Discount{
		Code: "DISABLED", Name: "Disabled", Type: domain.DiscountFixed,
		Value: 1000, IsActive: false,
	})

	t.Run("valid code", func(t *testing.T) {
		d, err := svc.Validate(ctx, "WELCOME10", 100000, now)
		require.NoError(t, err)
		assert.Equal(t, "WELCOME10", d.Code)
	})

	t.Run("match is case-insensitive", func(t *testing.T) {
		d, err := svc.Validate(ctx, "welcome10", 100000, now)
		require.NoError(t, err)
		assert.Equal(t, "WELCOME10", d.Code)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := svc.Validate(ctx, "NOPE", 100000, now)
		assert.ErrorIs(t, err, domain.ErrDiscountNotFound)
	})

	t.Run("inactive code behaves as missing", func(t *testing.T) {
		_, err := svc.Validate(ctx, "DISABLED", 100000, now)
		assert.ErrorIs(t, err, domain.ErrDiscountNotFound)
	})

	t.Run("expired code", func(t *testing.T) {
		_, err := svc.Validate(ctx, "EXPIRED", 100000, now)
		assert.ErrorIs(t, err, domain.ErrDiscountExpired)
	})

	t.Run("exhausted code", func(t *testing.T) {
		_, err := svc.Validate(ctx, "USEDUP", 100000, now)
		assert.ErrorIs(t, err, domain.ErrDiscountExhausted)
	})

	t.Run("minimum purchase not met", func(t *testing.T) {
		_, err := svc.Validate(ctx, "WELCOME10", 20000, now)
		var minErr *domain.MinPurchaseError
		require.True(t, errors.As(err, &minErr))
		assert.Equal(t, int64(50000), minErr.Required)
	})
}

func TestPreview(t *testing.T) {
	db := newTestDB(t)
	svc := New(db, zaptest.NewLogger(t))
	ctx := context.Background()
	now := time.Now().UTC()

	insertDiscount(t, db, domain.Discount{
		Code: "WELCOME10", Name: "Welcome", Type: domain.DiscountPercentage,
		Value: 10, MinPurchase: 50000, MaxDiscount: int64Ptr(20000), IsActive: true,
	})
	insertDiscount(t, db, domain.Discount{
		Code: "HEMAT5K", Name: "Hemat", Type: domain.DiscountFixed,
		Value: 5000, MinPurchase: 30000, IsActive: true,
	})

	d, amount, err := svc.Preview(ctx, "WELCOME10", 100000, now)
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", d.Code)
	assert.Equal(t, int64(10000), amount)

	_, _, err = svc.Preview(ctx, "HEMAT5K", 20000, now)
	var minErr *domain.MinPurchaseError
	require.True(t, errors.As(err, &minErr))
	assert.Equal(t, int64(30000), minErr.Required)
}
