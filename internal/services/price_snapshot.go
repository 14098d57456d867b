package services

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// SnapshotLine freezes the product and its price into an order line. The effective price is the
// override when given, otherwise the catalog price at this moment. Product fields are copied so that
// later catalog edits never reach the order.
func SnapshotLine(product Product, quantity int, override *decimal.Decimal) OrderLine {
	price := product.Price
	if override != nil {
		price = *override
	}
	return OrderLine{
		Product: ProductSnapshot{
			ID:           strings.TrimSpace(product.ID),
			Brand:        strings.TrimSpace(product.Brand),
			Model:        strings.TrimSpace(product.Model),
			SKU:          strings.TrimSpace(product.SKU),
			Images:       slices.Clone(product.Images),
			CatalogPrice: product.Price,
		},
		Quantity:       quantity,
		EffectivePrice: price,
	}
}

type pricedItem struct {
	product  Product
	quantity int
	override *decimal.Decimal
}

func snapshotLines(items []pricedItem) ([]OrderLine, error) {
	lines := make([]OrderLine, 0, len(items))
	for i, item := range items {
		if item.quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d quantity must be positive", ErrOrderInvalidInput, i)
		}
		if item.override != nil && item.override.IsNegative() {
			return nil, fmt.Errorf("%w: line %d price must not be negative", ErrOrderInvalidInput, i)
		}
		lines = append(lines, SnapshotLine(item.product, item.quantity, item.override))
	}
	return lines, nil
}
