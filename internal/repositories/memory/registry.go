// Package memory provides process-local repositories for tests and the memory store backend.
package memory

import (
	"context"

	"github.com/panaven/api/internal/repositories"
)

// Registry bundles the in-memory repositories.
type Registry struct {
	orders   *OrderRepository
	catalog  *CatalogRepository
	exchange *ExchangeRateRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs empty repositories. The catalog can be seeded through Catalog().Put.
func NewRegistry() *Registry {
	return &Registry{
		orders:   NewOrderRepository(),
		catalog:  NewCatalogRepository(),
		exchange: NewExchangeRateRepository(),
	}
}

func (r *Registry) Close(context.Context) error { return nil }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) ExchangeRates() repositories.ExchangeRateRepository { return r.exchange }

// Products exposes the concrete catalog for seeding.
func (r *Registry) Products() *CatalogRepository { return r.catalog }
