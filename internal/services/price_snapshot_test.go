package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotLine_CopiesProduct(t *testing.T) {
	product := Product{ID: "p1", Brand: "Bosch", Model: "F026", SKU: "FLT-1", Price: decimal.RequireFromString("45"), Images: []string{"a.jpg"}}
	line := SnapshotLine(product, 2, nil)

	product.Price = decimal.RequireFromString("60")
	product.Brand = "Mann"
	product.Images[0] = "b.jpg"

	assert.Equal(t, "45", line.Product.CatalogPrice.String())
	assert.Equal(t, "45", line.EffectivePrice.String())
	assert.Equal(t, "Bosch", line.Product.Brand)
	assert.Equal(t, []string{"a.jpg"}, line.Product.Images)
	assert.Equal(t, "90", line.Subtotal().String())
}

func TestSnapshotLine_Override(t *testing.T) {
	override := decimal.RequireFromString("40")
	line := SnapshotLine(Product{ID: "p1", Price: decimal.RequireFromString("45")}, 3, &override)

	assert.Equal(t, "45", line.Product.CatalogPrice.String())
	assert.Equal(t, "40", line.EffectivePrice.String())
	assert.Equal(t, "120", line.Subtotal().String())
}

func TestSnapshotLines_Validation(t *testing.T) {
	negative := decimal.RequireFromString("-1")
	product := Product{ID: "p1", Price: decimal.RequireFromString("45")}

	_, err := snapshotLines([]pricedItem{{product: product, quantity: 0}})
	require.ErrorIs(t, err, ErrOrderInvalidInput)

	_, err = snapshotLines([]pricedItem{{product: product, quantity: 1, override: &negative}})
	require.ErrorIs(t, err, ErrOrderInvalidInput)

	zero := decimal.Zero
	lines, err := snapshotLines([]pricedItem{{product: product, quantity: 1, override: &zero}})
	require.NoError(t, err)
	assert.True(t, lines[0].EffectivePrice.IsZero())
}
