package sale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"kasirpos/m/domain"
)

const transactionColumns = `id, receipt_no, user_id, customer_id, discount_id, subtotal, discount_amount, total, cost_total, paid, change, payment_method, notes, voided_at, created_at`

// ListFilter narrows the transaction history.
type ListFilter struct {
	Limit         int
	DateFrom      *time.Time
	DateTo        *time.Time
	PaymentMethod string
	IncludeVoided bool
}

// Get loads one committed sale with its line items.
func (s *Service) Get(ctx context.Context, transactionID int64) (*Receipt, error) {
	var entry domain.Transaction
	err := s.db.GetContext(ctx, &entry,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %d: %w", transactionID, err)
	}

	items := []domain.TransactionItem{}
	err = s.db.SelectContext(ctx, &items,
		`SELECT id, transaction_id, product_id, product_name, quantity, price_at_sale, cost_at_sale, subtotal
         FROM transaction_items WHERE transaction_id = $1 ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("load transaction items: %w", err)
	}

	return &Receipt{Transaction: entry, Profit: entry.Profit(), Items: items}, nil
}

// List returns recent sales, newest first, with their items.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Receipt, error) {
	var (
		args    []any
		clauses []string
	)

	if !filter.IncludeVoided {
		clauses = append(clauses, "voided_at IS NULL")
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.PaymentMethod != "" {
		args = append(args, filter.PaymentMethod)
		clauses = append(clauses, fmt.Sprintf("payment_method = $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	var entries []domain.Transaction
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if len(entries) == 0 {
		return []Receipt{}, nil
	}

	ids := make([]int64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}

	itemsQuery, itemsArgs, err := sqlx.In(
		`SELECT id, transaction_id, product_id, product_name, quantity, price_at_sale, cost_at_sale, subtotal
         FROM transaction_items WHERE transaction_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("prepare transaction items query: %w", err)
	}
	itemsQuery = s.db.Rebind(itemsQuery)

	var rows []domain.TransactionItem
	if err := s.db.SelectContext(ctx, &rows, itemsQuery, itemsArgs...); err != nil {
		return nil, fmt.Errorf("load transaction items: %w", err)
	}
	itemsByTransaction := make(map[int64][]domain.TransactionItem)
	for _, row := range rows {
		itemsByTransaction[row.TransactionID] = append(itemsByTransaction[row.TransactionID], row)
	}

	receipts := make([]Receipt, len(entries))
	for i, entry := range entries {
		receipts[i] = Receipt{
			Transaction: entry,
			Profit:      entry.Profit(),
			Items:       itemsByTransaction[entry.ID],
		}
	}
	return receipts, nil
}
