// Package sale owns the transaction processing core: turning a cart into
// a committed sale and reversing one. All multi-row mutations happen in a
// single database transaction; nothing is visible until it commits.
package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kasirpos/m/domain"
	"kasirpos/m/internal/catalog"
	"kasirpos/m/internal/metrics"
	"kasirpos/m/internal/promo"
)

// CustomerVerifier checks that a referenced customer exists. Implemented
// by the customer service client; nil disables the check.
type CustomerVerifier interface {
	Verify(ctx context.Context, customerID int64) error
}

// Service orchestrates the order assembler, promotion engine and stock
// ledger into one all-or-nothing sale commit.
type Service struct {
	db        *sqlx.DB
	catalog   *catalog.Service
	promos    *promo.Service
	customers CustomerVerifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func New(db *sqlx.DB, cat *catalog.Service, promos *promo.Service, customers CustomerVerifier, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        db,
		catalog:   cat,
		promos:    promos,
		customers: customers,
		metrics:   m,
		logger:    logger,
	}
}

// CartItem is one requested (product, quantity) pair before pricing.
type CartItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// CreateRequest carries everything needed to commit a sale. UserID and
// CustomerID are optional; a nil UserID is a guest cashier.
type CreateRequest struct {
	Items         []CartItem
	DiscountCode  string
	PaymentMethod string
	Paid          int64
	Notes         string
	UserID        *int64
	CustomerID    *int64
}

// Receipt is a committed ledger entry with its line items.
type Receipt struct {
	domain.Transaction
	Profit int64                    `json:"profit"`
	Items  []domain.TransactionItem `json:"items"`
}

// assembledLine is a priced cart line with product snapshots taken at
// assembly time.
type assembledLine struct {
	product  domain.Product
	quantity int64
	subtotal int64
	cost     int64
}

type assembly struct {
	lines     []assembledLine
	subtotal  int64
	costTotal int64
}

// assemble resolves the cart against the catalog and prices it. Pure
// read phase: availability is checked here for early feedback, but the
// authoritative check is the conditional debit at commit time.
func (s *Service) assemble(ctx context.Context, items []CartItem) (assembly, error) {
	if len(items) == 0 {
		return assembly{}, domain.ErrEmptyCart
	}

	var out assembly
	for _, item := range items {
		if item.Quantity < 1 {
			return assembly{}, fmt.Errorf("product %d: %w", item.ProductID, domain.ErrInvalidQuantity)
		}

		product, err := s.catalog.FindForSale(ctx, item.ProductID)
		if err != nil {
			return assembly{}, err
		}
		if product.Stock < item.Quantity {
			return assembly{}, &domain.InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Stock,
			}
		}

		line := assembledLine{
			product:  product,
			quantity: item.Quantity,
			subtotal: product.Price * item.Quantity,
			cost:     product.CostPrice * item.Quantity,
		}
		out.lines = append(out.lines, line)
		out.subtotal += line.subtotal
		out.costTotal += line.cost
	}
	return out, nil
}

// Create runs the full commit protocol: assemble, price, authorize,
// commit. Any error aborts the whole sale with no externally visible
// mutation. A domain.ErrConflict result means the commit step lost a
// race; the caller may retry the entire operation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Receipt, error) {
	// Assembling
	asm, err := s.assemble(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	// Pricing
	now := time.Now().UTC()
	var discount *domain.Discount
	var discountAmount int64
	if req.DiscountCode != "" {
		d, err := s.promos.Validate(ctx, req.DiscountCode, asm.subtotal, now)
		if err != nil {
			return nil, err
		}
		discount = &d
		discountAmount = promo.Calculate(d, asm.subtotal)
	}
	total := asm.subtotal - discountAmount

	// Authorizing
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return nil, domain.ErrInvalidPaymentMethod
	}
	if req.Paid < total {
		return nil, &domain.PaymentShortfallError{Shortfall: total - req.Paid}
	}
	change := req.Paid - total

	if req.CustomerID != nil && s.customers != nil {
		if err := s.customers.Verify(ctx, *req.CustomerID); err != nil {
			return nil, err
		}
	}

	// Committing
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sale transaction: %w", err)
	}
	defer tx.Rollback()

	entry := domain.Transaction{
		ReceiptNo:      uuid.NewString(),
		UserID:         req.UserID,
		CustomerID:     req.CustomerID,
		Subtotal:       asm.subtotal,
		DiscountAmount: discountAmount,
		Total:          total,
		CostTotal:      asm.costTotal,
		Paid:           req.Paid,
		Change:         change,
		PaymentMethod:  req.PaymentMethod,
		CreatedAt:      now,
	}
	if discount != nil {
		entry.DiscountID = &discount.ID
	}
	if req.Notes != "" {
		notes := req.Notes
		entry.Notes = &notes
	}

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO transactions (receipt_no, user_id, customer_id, discount_id, subtotal, discount_amount, total, cost_total, paid, change, payment_method, notes, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		entry.ReceiptNo, entry.UserID, entry.CustomerID, entry.DiscountID,
		entry.Subtotal, entry.DiscountAmount, entry.Total, entry.CostTotal,
		entry.Paid, entry.Change, entry.PaymentMethod, entry.Notes, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	items := make([]domain.TransactionItem, 0, len(asm.lines))
	for _, line := range asm.lines {
		debited, err := debitStock(ctx, tx, line.product.ID, line.quantity, now)
		if err != nil {
			return nil, err
		}
		if !debited {
			// Assembly saw enough stock, so a concurrent sale got here
			// first. Roll everything back and report the race.
			s.countConflict()
			s.logger.Warn("sale commit lost stock race",
				zap.Int64("product_id", line.product.ID),
				zap.Int64("quantity", line.quantity),
			)
			return nil, fmt.Errorf("stock for %s changed during commit: %w", line.product.Name, domain.ErrConflict)
		}

		item := domain.TransactionItem{
			TransactionID: entry.ID,
			ProductID:     line.product.ID,
			ProductName:   line.product.Name,
			Quantity:      line.quantity,
			PriceAtSale:   line.product.Price,
			CostAtSale:    line.product.CostPrice,
			Subtotal:      line.subtotal,
		}
		err = tx.QueryRowxContext(ctx,
			`INSERT INTO transaction_items (transaction_id, product_id, product_name, quantity, price_at_sale, cost_at_sale, subtotal)
             VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			item.TransactionID, item.ProductID, item.ProductName,
			item.Quantity, item.PriceAtSale, item.CostAtSale, item.Subtotal,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("insert transaction item: %w", err)
		}
		items = append(items, item)
	}

	if discount != nil {
		res, err := tx.ExecContext(ctx,
			`UPDATE discounts SET usage_count = usage_count + 1
             WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`,
			discount.ID)
		if err != nil {
			return nil, fmt.Errorf("increment discount usage: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("increment discount usage: %w", err)
		}
		if affected == 0 {
			s.countConflict()
			s.logger.Warn("sale commit lost discount usage race", zap.String("code", discount.Code))
			return nil, fmt.Errorf("discount %s exhausted during commit: %w", discount.Code, domain.ErrConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sale: %w", err)
	}

	// Committed
	if s.metrics != nil {
		s.metrics.SalesCommitted.Inc()
	}
	s.logger.Info("sale committed",
		zap.Int64("transaction_id", entry.ID),
		zap.String("receipt_no", entry.ReceiptNo),
		zap.Int64("total", entry.Total),
		zap.Int("items", len(items)),
		zap.String("payment_method", entry.PaymentMethod),
	)

	return &Receipt{Transaction: entry, Profit: entry.Profit(), Items: items}, nil
}

func (s *Service) countConflict() {
	if s.metrics != nil {
		s.metrics.CommitConflicts.Inc()
	}
}
