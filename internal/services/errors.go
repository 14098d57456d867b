package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidAmount rejects non-positive payment amounts.
	ErrInvalidAmount = errors.New("order: invalid amount")
	// ErrMissingReference rejects payments or payment evidence without a reference.
	ErrMissingReference = errors.New("order: missing reference")
	// ErrInsufficientStock reports a line whose quantity exceeds the last known stock.
	ErrInsufficientStock = errors.New("order: insufficient stock")
	// ErrPreconditionFailed reports that the stored status differs from the caller's assumption.
	ErrPreconditionFailed = errors.New("order: precondition failed")
	// ErrMissingRequiredField reports an absent field the operation needs.
	ErrMissingRequiredField = errors.New("order: missing required field")

	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the command is not allowed from the current status.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrProductNotFound indicates a cart line references an unknown product.
	ErrProductNotFound = errors.New("order: product not found")

	// ErrRateUnavailable indicates no provider and no stored rate could supply an exchange rate.
	ErrRateUnavailable = errors.New("exchange: rate unavailable")
)

// InsufficientStockError names the offending line of a refused manual sale.
type InsufficientStockError struct {
	LineIndex int
	ProductID string
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	label := e.SKU
	if label == "" {
		label = e.ProductID
	}
	return fmt.Sprintf("%s: line %d (%s) requests %d, %d available", ErrInsufficientStock, e.LineIndex, label, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// StockDecrementError lists lines whose decrement failed after the order was stored. The order
// exists; stock for the listed products needs manual reconciliation.
type StockDecrementError struct {
	Failures []StockDecrementFailure
}

// StockDecrementFailure is a single failed decrement.
type StockDecrementFailure struct {
	LineIndex int
	ProductID string
	Quantity  int
	Err       error
}

func (e *StockDecrementError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("line %d (%s x%d): %v", f.LineIndex, f.ProductID, f.Quantity, f.Err))
	}
	return "inventory: stock decrement incomplete: " + strings.Join(parts, "; ")
}

func (e *StockDecrementError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
