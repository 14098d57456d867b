package repositories

import "fmt"

// StockErrorCode enumerates repository error causes for catalog stock operations.
type StockErrorCode string

const (
	// StockErrorInsufficient indicates a checked decrement would take stock below zero.
	StockErrorInsufficient StockErrorCode = "stock_insufficient"
	// StockErrorProductNotFound indicates the product document does not exist.
	StockErrorProductNotFound StockErrorCode = "stock_product_not_found"
	// StockErrorInvalidQuantity indicates a non-positive quantity was supplied.
	StockErrorInvalidQuantity StockErrorCode = "stock_invalid_quantity"
)

// StockError wraps stock failures with machine readable codes. Available carries the stock read
// inside the transaction when Code is StockErrorInsufficient.
type StockError struct {
	Op        string
	Code      StockErrorCode
	ProductID string
	Available int
	Err       error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s (product %s)", e.Code, e.ProductID)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the product is missing.
func (e *StockError) IsNotFound() bool {
	return e != nil && e.Code == StockErrorProductNotFound
}

// IsConflict reports whether the stored stock refused the decrement.
func (e *StockError) IsConflict() bool {
	return e != nil && e.Code == StockErrorInsufficient
}

// IsUnavailable is always false; transport failures are reported by the store's own error type.
func (e *StockError) IsUnavailable() bool {
	return false
}

// NewStockError constructs a typed stock error.
func NewStockError(code StockErrorCode, productID string, available int) *StockError {
	return &StockError{Code: code, ProductID: productID, Available: available}
}
