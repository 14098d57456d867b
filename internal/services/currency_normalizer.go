package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CanonicalCurrency is the currency every stored amount is expressed in.
const CanonicalCurrency = "USD"

// CurrencyNormalizer renders canonical amounts in a display currency. It holds no rate and never
// writes anything back; callers pass the rate they resolved.
type CurrencyNormalizer struct {
	printer *message.Printer
}

// NewCurrencyNormalizer builds a normalizer that formats numbers for the given locale.
func NewCurrencyNormalizer(tag language.Tag) CurrencyNormalizer {
	return CurrencyNormalizer{printer: message.NewPrinter(tag)}
}

// Convert multiplies amount by rate and rounds to the target currency's standard scale.
func (n CurrencyNormalizer) Convert(amount decimal.Decimal, target string, rate decimal.Decimal) (decimal.Decimal, error) {
	unit, err := parseCurrency(target)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: rate must be positive", ErrOrderInvalidInput)
	}
	if unit.String() == CanonicalCurrency {
		rate = decimal.NewFromInt(1)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return amount.Mul(rate).Round(int32(scale)), nil
}

// Display returns the converted amount prefixed by its ISO code, e.g. "VES 3,285.00".
func (n CurrencyNormalizer) Display(amount decimal.Decimal, target string, rate decimal.Decimal) (string, error) {
	converted, err := n.Convert(amount, target, rate)
	if err != nil {
		return "", err
	}
	unit, _ := parseCurrency(target)
	scale, _ := currency.Standard.Rounding(unit)
	printer := n.printer
	if printer == nil {
		printer = message.NewPrinter(language.English)
	}
	return unit.String() + " " + formatAmount(printer, converted, scale), nil
}

// maxExactInteger is the largest integer part x/text can format without going through float64.
var maxExactInteger = decimal.NewFromInt(math.MaxInt64)

// formatAmount groups the integer part through printer and appends the fraction digits taken
// from the decimal itself, so no digit passes through a float64.
func formatAmount(printer *message.Printer, amount decimal.Decimal, scale int) string {
	rounded := amount.Round(int32(scale))
	abs := rounded.Abs()
	whole := abs.Truncate(0)
	if whole.GreaterThan(maxExactInteger) {
		return printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(scale)))
	}

	out := printer.Sprint(number.Decimal(whole.IntPart()))
	if scale > 0 {
		digits := abs.Sub(whole).Shift(int32(scale)).StringFixed(0)
		if pad := scale - len(digits); pad > 0 {
			digits = strings.Repeat("0", pad) + digits
		}
		out += decimalSeparator(printer) + digits
	}
	if rounded.IsNegative() {
		out = "-" + out
	}
	return out
}

// decimalSeparator reads the locale's separator off a formatted 0.5.
func decimalSeparator(printer *message.Printer) string {
	sample := printer.Sprint(number.Decimal(0.5, number.Scale(1)))
	sep := strings.TrimSuffix(strings.TrimPrefix(sample, "0"), "5")
	if sep == "" {
		return "."
	}
	return sep
}

func parseCurrency(code string) (currency.Unit, error) {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return currency.Unit{}, fmt.Errorf("%w: unknown currency %q", ErrOrderInvalidInput, code)
	}
	return unit, nil
}
