package sale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kasirpos/m/domain"
)

// Void reverses a committed sale: every line item's quantity is credited
// back to its product, the discount usage (if any) is released, and the
// entry is marked voided. The row itself stays for the audit trail, and
// a voided entry cannot be voided again.
func (s *Service) Void(ctx context.Context, transactionID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin void transaction: %w", err)
	}
	defer tx.Rollback()

	var entry domain.Transaction
	err = tx.GetContext(ctx, &entry,
		`SELECT id, receipt_no, user_id, customer_id, discount_id, subtotal, discount_amount, total, cost_total, paid, change, payment_method, notes, voided_at, created_at
         FROM transactions WHERE id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrTransactionNotFound
	}
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", transactionID, err)
	}
	if entry.VoidedAt != nil {
		return domain.ErrTransactionVoided
	}

	var items []domain.TransactionItem
	err = tx.SelectContext(ctx, &items,
		`SELECT id, transaction_id, product_id, product_name, quantity, price_at_sale, cost_at_sale, subtotal
         FROM transaction_items WHERE transaction_id = $1 ORDER BY id`, transactionID)
	if err != nil {
		return fmt.Errorf("load transaction items: %w", err)
	}

	now := time.Now().UTC()
	for _, item := range items {
		if err := creditStock(ctx, tx, item.ProductID, item.Quantity, now); err != nil {
			return err
		}
	}

	if entry.DiscountID != nil {
		// Floor at zero: a usage count already at zero stays there
		// instead of going negative.
		if _, err := tx.ExecContext(ctx,
			`UPDATE discounts SET usage_count = usage_count - 1 WHERE id = $1 AND usage_count > 0`,
			*entry.DiscountID); err != nil {
			return fmt.Errorf("release discount usage: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET voided_at = $1 WHERE id = $2 AND voided_at IS NULL`,
		now, transactionID)
	if err != nil {
		return fmt.Errorf("mark transaction voided: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark transaction voided: %w", err)
	}
	if affected == 0 {
		s.countConflict()
		return fmt.Errorf("transaction %d voided concurrently: %w", transactionID, domain.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit void: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SalesVoided.Inc()
	}
	s.logger.Info("sale voided",
		zap.Int64("transaction_id", transactionID),
		zap.String("receipt_no", entry.ReceiptNo),
		zap.Int("items_restored", len(items)),
	)
	return nil
}
