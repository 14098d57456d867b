package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/panaven/api/internal/domain"
)

type seedProduct struct {
	ID     string          `json:"id"`
	Brand  string          `json:"brand"`
	Model  string          `json:"model"`
	SKU    string          `json:"sku"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Images []string        `json:"images"`
}

// SeedProducts loads a JSON array of products into the catalog and returns how many were stored.
func (r *Registry) SeedProducts(src io.Reader) (int, error) {
	var items []seedProduct
	if err := json.NewDecoder(src).Decode(&items); err != nil {
		return 0, fmt.Errorf("memory: decode seed: %w", err)
	}
	for i, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			return 0, fmt.Errorf("memory: seed product %d has no id", i)
		}
		r.catalog.Put(domain.Product{
			ID:     id,
			Brand:  item.Brand,
			Model:  item.Model,
			SKU:    item.SKU,
			Price:  item.Price,
			Stock:  item.Stock,
			Images: item.Images,
		})
	}
	return len(items), nil
}

// SeedProductsFile is SeedProducts over the file at path.
func (r *Registry) SeedProductsFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("memory: open seed: %w", err)
	}
	defer f.Close()
	return r.SeedProducts(f)
}
