package memory

import (
	"context"
	"slices"
	"sync"

	domain "github.com/panaven/api/internal/domain"
	"github.com/panaven/api/internal/repositories"
)

// CatalogRepository holds products for local runs and tests.
type CatalogRepository struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository seeds the repository with products.
func NewCatalogRepository(products ...domain.Product) *CatalogRepository {
	repo := &CatalogRepository{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		repo.Put(p)
	}
	return repo
}

// Put inserts or replaces a product.
func (r *CatalogRepository) Put(product domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product.Images = slices.Clone(product.Images)
	r.products[product.ID] = product
}

func (r *CatalogRepository) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, notFound("products.get", productID)
	}
	product.Images = slices.Clone(product.Images)
	return product, nil
}

func (r *CatalogRepository) DecrementStock(_ context.Context, productID string, quantity int) error {
	if quantity == 0 {
		return repositories.NewStockError(repositories.StockErrorInvalidQuantity, productID, 0)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return repositories.NewStockError(repositories.StockErrorProductNotFound, productID, 0)
	}
	product.Stock -= quantity
	r.products[productID] = product
	return nil
}

func (r *CatalogRepository) DecrementStockChecked(_ context.Context, productID string, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, repositories.NewStockError(repositories.StockErrorInvalidQuantity, productID, 0)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, repositories.NewStockError(repositories.StockErrorProductNotFound, productID, 0)
	}
	if product.Stock < quantity {
		return domain.Product{}, repositories.NewStockError(repositories.StockErrorInsufficient, productID, product.Stock)
	}
	product.Stock -= quantity
	r.products[productID] = product
	return product, nil
}
