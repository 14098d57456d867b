package firestore

import (
	"context"
	"errors"

	"github.com/panaven/api/internal/platform/config"
	pfirestore "github.com/panaven/api/internal/platform/firestore"
	"github.com/panaven/api/internal/repositories"
)

// Registry wires the Firestore repositories over one provider.
type Registry struct {
	provider *pfirestore.Provider
	orders   *OrderRepository
	catalog  *CatalogRepository
	exchange *ExchangeRateRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository using the configured collection names.
func NewRegistry(provider *pfirestore.Provider, cfg config.FirestoreConfig) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	orders, err := NewOrderRepository(provider, cfg.OrdersCollection)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider, cfg.ProductsCollection)
	if err != nil {
		return nil, err
	}
	exchange, err := NewExchangeRateRepository(provider, cfg.SettingsCollection)
	if err != nil {
		return nil, err
	}
	return &Registry{provider: provider, orders: orders, catalog: catalog, exchange: exchange}, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) ExchangeRates() repositories.ExchangeRateRepository { return r.exchange }
