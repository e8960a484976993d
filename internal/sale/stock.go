package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// debitStock decrements a product's stock only if enough is available.
// The availability condition lives in the UPDATE itself, so a stale read
// can never oversell: two concurrent debits of the last unit resolve to
// one success and one zero-row update. Returns false when the condition
// failed.
func debitStock(ctx context.Context, tx *sqlx.Tx, productID, qty int64, now time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = $2 WHERE id = $3 AND stock >= $1`,
		qty, now, productID)
	if err != nil {
		return false, fmt.Errorf("debit stock for product %d: %w", productID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit stock for product %d: %w", productID, err)
	}
	return affected > 0, nil
}

// creditStock returns quantity to a product, used when a sale is voided.
// Stock is unbounded upward, so no condition is needed.
func creditStock(ctx context.Context, tx *sqlx.Tx, productID, qty int64, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock + $1, updated_at = $2 WHERE id = $3`,
		qty, now, productID); err != nil {
		return fmt.Errorf("credit stock for product %d: %w", productID, err)
	}
	return nil
}
