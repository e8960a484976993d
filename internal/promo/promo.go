package promo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kasirpos/m/domain"
)

// Service validates promo codes and computes discount amounts.
type Service struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func New(db *sqlx.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger}
}

// Validate checks a promo code against a proposed subtotal. Codes match
// case-insensitively; inactive codes are indistinguishable from missing
// ones. Checks run in order: existence, validity window, usage limit,
// minimum purchase.
func (s *Service) Validate(ctx context.Context, code string, subtotal int64, now time.Time) (domain.Discount, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	var d domain.Discount
	err := s.db.GetContext(ctx, &d,
		`SELECT id, code, name, discount_type, value, min_purchase, max_discount, is_active, valid_from, valid_until, usage_limit, usage_count, created_at
         FROM discounts WHERE code = $1 AND is_active = 1`, normalized)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Discount{}, domain.ErrDiscountNotFound
	}
	if err != nil {
		return domain.Discount{}, fmt.Errorf("look up discount %q: %w", normalized, err)
	}

	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return domain.Discount{}, domain.ErrDiscountExpired
	}
	if d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit {
		return domain.Discount{}, domain.ErrDiscountExhausted
	}
	if subtotal < d.MinPurchase {
		return domain.Discount{}, &domain.MinPurchaseError{Required: d.MinPurchase}
	}

	return d, nil
}

// Calculate returns the discount amount for a subtotal. A percentage
// discount is floored and capped at MaxDiscount when set; a fixed
// discount never exceeds the subtotal, so the total cannot go negative.
func Calculate(d domain.Discount, subtotal int64) int64 {
	if subtotal < d.MinPurchase {
		return 0
	}

	if d.Type == domain.DiscountPercentage {
		amount := subtotal * d.Value / 100
		if d.MaxDiscount != nil && amount > *d.MaxDiscount {
			amount = *d.MaxDiscount
		}
		return amount
	}

	// fixed
	if d.Value > subtotal {
		return subtotal
	}
	return d.Value
}

// Preview validates a code and reports the amount it would take off the
// given subtotal, without consuming a use.
func (s *Service) Preview(ctx context.Context, code string, subtotal int64, now time.Time) (domain.Discount, int64, error) {
	d, err := s.Validate(ctx, code, subtotal, now)
	if err != nil {
		return domain.Discount{}, 0, err
	}
	amount := Calculate(d, subtotal)
	s.logger.Debug("discount preview",
		zap.String("code", d.Code),
		zap.Int64("subtotal", subtotal),
		zap.Int64("discount_amount", amount),
	)
	return d, amount, nil
}
