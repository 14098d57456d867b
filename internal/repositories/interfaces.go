package repositories

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
)

// ErrStop aborts an OrderRepository.Mutate callback without writing. The callback's own error is
// returned to the caller unchanged when it is not ErrStop.
var ErrStop = errors.New("repositories: stop mutation")

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Catalog() CatalogRepository
	ExchangeRates() ExchangeRateRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderMutation receives the freshly read order and edits it in place. Returning an error aborts
// the write.
type OrderMutation func(order *domain.Order) error

// OrderRepository persists order documents. Identifiers are assigned by the store.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// Mutate reads the order, applies fn and writes the full result as one atomic step. Concurrent
	// writers are serialised by the store; fn may run more than once and must be free of side effects.
	Mutate(ctx context.Context, orderID string, fn OrderMutation) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderListFilter narrows operator listings. Results are ordered newest first.
type OrderListFilter struct {
	Statuses   []domain.OrderStatus
	Pagination domain.Pagination
}

// CatalogRepository reads products and applies relative stock adjustments.
type CatalogRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// DecrementStock applies stock = stock - quantity without reading the current value. A negative
	// quantity adds stock back.
	DecrementStock(ctx context.Context, productID string, quantity int) error
	// DecrementStockChecked reads and decrements in one transaction, refusing to go below zero.
	DecrementStockChecked(ctx context.Context, productID string, quantity int) (domain.Product, error)
}

// ExchangeRateRepository stores the manually entered fallback rate.
type ExchangeRateRepository interface {
	LatestManual(ctx context.Context) (domain.ExchangeRate, error)
	SaveManual(ctx context.Context, rate decimal.Decimal, source string) (domain.ExchangeRate, error)
}
