package domain

import "time"

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Discount is a promo code. Codes are stored upper-case and matched
// case-insensitively. UsageCount stays within [0, UsageLimit] when a
// limit is set.
type Discount struct {
	ID          int64      `db:"id" json:"id"`
	Code        string     `db:"code" json:"code"`
	Name        string     `db:"name" json:"name"`
	Type        string     `db:"discount_type" json:"discount_type"`
	Value       int64      `db:"value" json:"value"`
	MinPurchase int64      `db:"min_purchase" json:"min_purchase"`
	MaxDiscount *int64     `db:"max_discount" json:"max_discount,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	ValidFrom   *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil  *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	UsageLimit  *int64     `db:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount  int64      `db:"usage_count" json:"usage_count"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
