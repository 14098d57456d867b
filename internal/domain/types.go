package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// OrderStatus enumerates the lifecycle states persisted on an order.
type OrderStatus string

const (
	// OrderStatusQuoteRequested is the entry state for customer checkouts awaiting operator review.
	OrderStatusQuoteRequested OrderStatus = "QUOTE_REQUESTED"
	// OrderStatusApproved indicates the quote was accepted and awaits payment evidence.
	OrderStatusApproved OrderStatus = "APPROVED"
	// OrderStatusPaid indicates the order is settled (or payment evidence is under review).
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusShipped indicates goods left the store or are ready for pickup.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusCompleted indicates the customer confirmed receipt.
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCreditActive is the entry state for operator sales carrying an open balance.
	OrderStatusCreditActive OrderStatus = "CREDIT_ACTIVE"
	// OrderStatusRejected indicates the operator declined a quote request.
	OrderStatusRejected OrderStatus = "REJECTED"
)

// DeliveryMethod selects how the goods reach the customer.
type DeliveryMethod string

const (
	DeliveryShipping DeliveryMethod = "shipping"
	DeliveryPickup   DeliveryMethod = "pickup"
)

// PickupAddress is stored as the shipping address of orders collected in store.
const PickupAddress = "RETIRO EN TIENDA"

// EvidencePaymentNote annotates the payment created when a customer reports a transfer.
const EvidencePaymentNote = "COMPROBANTE DE PAGO"

// Product is the catalog record. Only price and stock are consumed by the order core.
type Product struct {
	ID     string
	Brand  string
	Model  string
	SKU    string
	Price  decimal.Decimal
	Stock  int
	Images []string
}

// ProductSnapshot freezes product metadata on an order line at creation time.
type ProductSnapshot struct {
	ID           string
	Brand        string
	Model        string
	SKU          string
	Images       []string
	CatalogPrice decimal.Decimal
}

// OrderLine is one priced line of an order.
type OrderLine struct {
	Product        ProductSnapshot
	Quantity       int
	EffectivePrice decimal.Decimal
}

// Subtotal returns effectivePrice × quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.EffectivePrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Payment is an immutable ledger entry.
type Payment struct {
	ID        string
	Amount    decimal.Decimal
	Timestamp time.Time
	Reference string
	Note      string
}

// Order aggregates lines, ledger and fulfilment evidence.
type Order struct {
	ID                 string
	Lines              []OrderLine
	Status             OrderStatus
	CustomerName       string
	ClientTaxID        string
	ClientBusinessName string
	ClientPhone        string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ShippingAddress    string
	PaymentReference   string
	PaymentProofRef    string
	ShippingReceiptRef string
	Payments           []Payment
	Rating             *int
	Review             string
}

// IsPickup reports whether the order is collected in store.
func (o Order) IsPickup() bool {
	return o.ShippingAddress == PickupAddress
}

// OrderTotals are derived figures, never persisted.
type OrderTotals struct {
	TotalAmount      decimal.Decimal
	TotalPaid        decimal.Decimal
	RemainingBalance decimal.Decimal
}

// ClientDebt groups open balances for one client key.
type ClientDebt struct {
	ClientKey string
	TotalDebt decimal.Decimal
	Orders    []Order
}

// FinanceSummary aggregates cash collected and open receivables across orders.
type FinanceSummary struct {
	Income      decimal.Decimal
	Receivables decimal.Decimal
}

// ExchangeRate is a canonical→display conversion factor and its provenance.
type ExchangeRate struct {
	Rate      decimal.Decimal
	Source    string
	UpdatedAt time.Time
}

// CursorPage represents a paginated response with an optional next page token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Health statuses reported by readiness probes.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// HealthCheck is the outcome of one dependency probe.
type HealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency probes for /readyz.
type HealthReport struct {
	Status      string
	Checks      map[string]HealthCheck
	GeneratedAt time.Time
}
