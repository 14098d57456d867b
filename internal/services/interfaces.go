package services

import (
	"context"

	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/repositories"
)

type (
	Pagination      = domain.Pagination
	Order           = domain.Order
	OrderLine       = domain.OrderLine
	OrderStatus     = domain.OrderStatus
	OrderTotals     = domain.OrderTotals
	Payment         = domain.Payment
	Product         = domain.Product
	ProductSnapshot = domain.ProductSnapshot
	ClientDebt      = domain.ClientDebt
	FinanceSummary  = domain.FinanceSummary
	ExchangeRate    = domain.ExchangeRate
	DeliveryMethod  = domain.DeliveryMethod

	OrderListFilter = repositories.OrderListFilter
)

// OrderService drives orders through their lifecycle. Every mutating call re-reads the stored
// order and decides on that fresh copy.
type OrderService interface {
	RequestQuote(ctx context.Context, cmd RequestQuoteCommand) (Order, error)
	CreateManualSale(ctx context.Context, cmd ManualSaleCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	Transition(ctx context.Context, req TransitionRequest) (Order, error)
	RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (Order, error)
	DebtReport(ctx context.Context) ([]ClientDebt, error)
	FinanceSummary(ctx context.Context) (FinanceSummary, error)
}

// InventoryService implements the stock side of manual sales.
type InventoryService interface {
	// CheckAvailability is advisory: it compares requested quantities against the stock values the
	// caller last read and names the first line that does not fit.
	CheckAvailability(requests []StockRequest) error
	// Decrement issues one relative decrement per request. Failures do not undo earlier lines.
	Decrement(ctx context.Context, requests []StockRequest) error
	// Restore re-adds quantities previously removed by Decrement.
	Restore(ctx context.Context, requests []StockRequest) error
	// Strict reports whether decrements are checked against stock inside a store transaction.
	Strict() bool
}

// ExchangeRateService resolves the canonical→display conversion rate.
type ExchangeRateService interface {
	Current(ctx context.Context) (ExchangeRate, error)
	SaveManual(ctx context.Context, cmd SaveManualRateCommand) (ExchangeRate, error)
}

// QuoteItem is one cart entry of a customer checkout.
type QuoteItem struct {
	ProductID string
	Quantity  int
}

// RequestQuoteCommand creates a QUOTE_REQUESTED order from a customer cart.
type RequestQuoteCommand struct {
	CustomerName string
	ClientPhone  string
	Items        []QuoteItem
}

// SaleItem is one line of an operator sale. OverridePrice replaces the catalog price when set.
type SaleItem struct {
	ProductID     string
	Quantity      int
	OverridePrice *decimal.Decimal
}

// ManualSaleCommand creates a CREDIT_ACTIVE order and decrements stock.
type ManualSaleCommand struct {
	CustomerName       string
	ClientTaxID        string
	ClientBusinessName string
	ClientPhone        string
	Items              []SaleItem
	ActorID            string
}

// TransitionRequest applies Command to the order when its stored status equals ExpectedStatus.
// An empty ExpectedStatus skips the comparison; the transition graph is always enforced.
type TransitionRequest struct {
	OrderID        string
	ExpectedStatus OrderStatus
	Command        TransitionCommand
	ActorID        string
}

// RecordPaymentCommand appends one payment to the order ledger.
type RecordPaymentCommand struct {
	OrderID   string
	Amount    decimal.Decimal
	Reference string
	Note      string
	ActorID   string
}

// SaveManualRateCommand stores the operator-entered fallback rate.
type SaveManualRateCommand struct {
	Rate    decimal.Decimal
	ActorID string
}

// StockRequest is one line's demand against the catalog.
type StockRequest struct {
	LineIndex      int
	ProductID      string
	SKU            string
	Quantity       int
	LastKnownStock int
}
