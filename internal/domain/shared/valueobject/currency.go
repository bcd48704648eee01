package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencyCode is used when no practice currency is configured
const DefaultCurrencyCode = "AUD"

// minor-unit digits per ISO 4217 code
var minorUnits = map[string]int32{
	"AUD": 2,
	"NZD": 2,
	"USD": 2,
	"CAD": 2,
	"GBP": 2,
	"EUR": 2,
	"ZAR": 2,
	"SGD": 2,
	"JPY": 0,
}

// Currency is the practice currency: an ISO 4217 code and the number of
// minor-unit digits amounts are rounded to. It is immutable.
type Currency struct {
	code  string
	scale int32
}

// NewCurrency resolves an ISO 4217 code
func NewCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	scale, ok := minorUnits[code]
	if !ok {
		return Currency{}, fmt.Errorf("unsupported currency %q", code)
	}
	return Currency{code: code, scale: scale}, nil
}

// MustCurrency is NewCurrency for codes known at compile time
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCurrency returns the fallback practice currency
func DefaultCurrency() Currency {
	return MustCurrency(DefaultCurrencyCode)
}

// Code returns the ISO 4217 code
func (c Currency) Code() string {
	return c.code
}

// Scale returns the number of minor-unit digits
func (c Currency) Scale() int32 {
	return c.scale
}

// IsZeroValue reports whether c was never initialised
func (c Currency) IsZeroValue() bool {
	return c.code == ""
}

// Round rounds half away from zero to the currency scale
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.scale)
}

// Equal compares two amounts at the currency scale
func (c Currency) Equal(a, b decimal.Decimal) bool {
	return c.Round(a).Equal(c.Round(b))
}

// IsZero reports whether amount rounds to zero
func (c Currency) IsZero(amount decimal.Decimal) bool {
	return c.Round(amount).IsZero()
}

// IsPositive reports whether amount rounds to a positive value
func (c Currency) IsPositive(amount decimal.Decimal) bool {
	return c.Round(amount).IsPositive()
}

// String returns the currency code
func (c Currency) String() string {
	return c.code
}
