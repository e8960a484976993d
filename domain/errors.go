package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the sale and catalog services. All of them
// are caller-facing; none indicate an internal fault.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrProductNotFound      = errors.New("product not found")
	ErrInvalidPaymentMethod = errors.New("payment method must be one of: cash, qris, debit, credit")
	ErrDiscountNotFound     = errors.New("discount code not found")
	ErrDiscountExpired      = errors.New("discount code expired")
	ErrDiscountExhausted    = errors.New("discount code usage limit reached")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionVoided    = errors.New("transaction already voided")
	ErrCustomerNotFound     = errors.New("customer not found")

	// ErrConflict means an atomic commit step lost a race with a
	// concurrent writer. Nothing was applied; the whole operation may be
	// retried.
	ErrConflict = errors.New("concurrent update conflict")
)

// InsufficientStockError reports how much stock was actually available.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d", e.Name, e.Available)
}

// MinPurchaseError reports the minimum purchase a discount requires.
type MinPurchaseError struct {
	Required int64
}

func (e *MinPurchaseError) Error() string {
	return fmt.Sprintf("minimum purchase of %d required for this discount", e.Required)
}

// PaymentShortfallError reports how much payment was missing.
type PaymentShortfallError struct {
	Shortfall int64
}

func (e *PaymentShortfallError) Error() string {
	return fmt.Sprintf("payment short by %d", e.Shortfall)
}
