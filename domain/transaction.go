package domain

import "time"

// Accepted payment methods.
const (
	PaymentCash   = "cash"
	PaymentQRIS   = "qris"
	PaymentDebit  = "debit"
	PaymentCredit = "credit"
)

// ValidPaymentMethod reports whether m is one of the accepted methods.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentQRIS, PaymentDebit, PaymentCredit:
		return true
	}
	return false
}

// Transaction is a committed sale. UserID and CustomerID are nil for
// guest cashiers and walk-in customers. A voided sale keeps its row and
// gets VoidedAt set; it never reappears in revenue figures.
//
// Invariants: Total = Subtotal - DiscountAmount >= 0, Paid >= Total,
// Change = Paid - Total.
type Transaction struct {
	ID             int64      `db:"id" json:"id"`
	ReceiptNo      string     `db:"receipt_no" json:"receipt_no"`
	UserID         *int64     `db:"user_id" json:"user_id,omitempty"`
	CustomerID     *int64     `db:"customer_id" json:"customer_id,omitempty"`
	DiscountID     *int64     `db:"discount_id" json:"discount_id,omitempty"`
	Subtotal       int64      `db:"subtotal" json:"subtotal"`
	DiscountAmount int64      `db:"discount_amount" json:"discount_amount"`
	Total          int64      `db:"total" json:"total"`
	CostTotal      int64      `db:"cost_total" json:"cost_total"`
	Paid           int64      `db:"paid" json:"paid"`
	Change         int64      `db:"change" json:"change"`
	PaymentMethod  string     `db:"payment_method" json:"payment_method"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	VoidedAt       *time.Time `db:"voided_at" json:"voided_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Profit is revenue minus cost of goods sold.
func (t Transaction) Profit() int64 {
	return t.Total - t.CostTotal
}

// TransactionItem is one sold line. ProductName, PriceAtSale and
// CostAtSale are snapshots: editing the product later must not change
// sale history.
type TransactionItem struct {
	ID            int64  `db:"id" json:"id"`
	TransactionID int64  `db:"transaction_id" json:"transaction_id"`
	ProductID     int64  `db:"product_id" json:"product_id"`
	ProductName   string `db:"product_name" json:"product_name"`
	Quantity      int64  `db:"quantity" json:"quantity"`
	PriceAtSale   int64  `db:"price_at_sale" json:"price_at_sale"`
	CostAtSale    int64  `db:"cost_at_sale" json:"cost_at_sale"`
	Subtotal      int64  `db:"subtotal" json:"subtotal"`
}
