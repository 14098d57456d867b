package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestCurrencyNormalizer_Convert(t *testing.T) {
	n := NewCurrencyNormalizer(language.English)

	got, err := n.Convert(decimal.RequireFromString("90"), "ves", decimal.RequireFromString("36.505"))
	require.NoError(t, err)
	assert.Equal(t, "3285.45", got.String())

	got, err = n.Convert(decimal.RequireFromString("90"), "USD", decimal.RequireFromString("36.5"))
	require.NoError(t, err)
	assert.Equal(t, "90", got.String())

	_, err = n.Convert(decimal.RequireFromString("90"), "VES", decimal.Zero)
	assert.ErrorIs(t, err, ErrOrderInvalidInput)

	_, err = n.Convert(decimal.RequireFromString("90"), "XXXX", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrOrderInvalidInput)
}

func TestCurrencyNormalizer_Display(t *testing.T) {
	got, err := NewCurrencyNormalizer(language.English).Display(decimal.RequireFromString("90"), "VES", decimal.RequireFromString("36.5"))
	require.NoError(t, err)
	assert.Equal(t, "VES 3,285.00", got)

	got, err = NewCurrencyNormalizer(language.German).Display(decimal.RequireFromString("1234.5"), "USD", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "USD 1.234,50", got)
}

func TestCurrencyNormalizer_DoesNotTouchCanonical(t *testing.T) {
	amount := decimal.RequireFromString("12.34")
	_, err := NewCurrencyNormalizer(language.English).Convert(amount, "VES", decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.Equal(t, "12.34", amount.String())
}

func TestCurrencyNormalizer_DisplayKeepsEveryDigit(t *testing.T) {
	n := NewCurrencyNormalizer(language.English)

	got, err := n.Display(decimal.RequireFromString("123456789012345678.91"), "USD", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "USD 123,456,789,012,345,678.91", got)

	got, err = n.Display(decimal.RequireFromString("-10.05"), "USD", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "USD -10.05", got)

	got, err = n.Display(decimal.RequireFromString("0.07"), "VES", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "VES 0.07", got)
}
