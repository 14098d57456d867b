package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
	pfirestore "github.com/panaven/api/internal/platform/firestore"
	"github.com/panaven/api/internal/repositories"
)

const defaultProductsCollection = "products"

// CatalogRepository reads products maintained by the storefront admin and adjusts their stock.
type CatalogRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository binds the repository to collection (defaults to "products").
func NewCatalogRepository(provider *pfirestore.Provider, collection string) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultProductsCollection
	}
	return &CatalogRepository{
		provider: provider,
		products: pfirestore.NewCollection[productDocument](provider, collection),
	}, nil
}

func (r *CatalogRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// DecrementStock sends a server-side increment of -quantity, so concurrent decrements compose
// without a read.
func (r *CatalogRepository) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if quantity == 0 {
		return repositories.NewStockError(repositories.StockErrorInvalidQuantity, productID, 0)
	}
	ref, err := r.products.Doc(ctx, productID)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, []firestore.Update{{Path: "stock", Value: firestore.Increment(-quantity)}})
	return wrapStockError("products.decrement", productID, err)
}

func (r *CatalogRepository) DecrementStockChecked(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	if quantity <= 0 {
		return domain.Product{}, repositories.NewStockError(repositories.StockErrorInvalidQuantity, productID, 0)
	}
	ref, err := r.products.Doc(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	var updated domain.Product
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.products.GetTx(tx, ref)
		if err != nil {
			return err
		}
		if doc.Data.Stock < int64(quantity) {
			return repositories.NewStockError(repositories.StockErrorInsufficient, productID, int(doc.Data.Stock))
		}
		doc.Data.Stock -= int64(quantity)
		if err := tx.Update(ref, []firestore.Update{{Path: "stock", Value: doc.Data.Stock}}); err != nil {
			return err
		}
		updated = doc.Data.toDomain(doc.ID)
		return nil
	})
	if err != nil {
		return domain.Product{}, wrapStockError("products.decrementChecked", productID, err)
	}
	return updated, nil
}

type productDocument struct {
	Brand  string   `firestore:"brand"`
	Model  string   `firestore:"model"`
	SKU    string   `firestore:"sku"`
	Price  float64  `firestore:"price"`
	Stock  int64    `firestore:"stock"`
	Images []string `firestore:"images,omitempty"`
}

// toDomain keeps every digit of the stored price, sub-cent amounts included. Amounts are rounded
// only when displayed.
func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:     id,
		Brand:  strings.TrimSpace(d.Brand),
		Model:  strings.TrimSpace(d.Model),
		SKU:    strings.TrimSpace(d.SKU),
		Price:  decimal.NewFromFloat(d.Price),
		Stock:  int(d.Stock),
		Images: d.Images,
	}
}

func wrapStockError(op, productID string, err error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		if stockErr.Op == "" {
			stockErr.Op = op
		}
		return stockErr
	}
	wrapped := pfirestore.WrapError(op, err)
	var repoErr repositories.RepositoryError
	if errors.As(wrapped, &repoErr) && repoErr.IsNotFound() {
		return &repositories.StockError{Op: op, Code: repositories.StockErrorProductNotFound, ProductID: productID, Err: wrapped}
	}
	return wrapped
}
