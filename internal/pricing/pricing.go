// Package pricing holds the numeric rules of ticket issuance: the final
// price after a discount, the usage policy copied onto an issued ticket and
// the card/cash payment split against the final price.
package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativePrice is returned for a base price below zero.
	ErrNegativePrice = errors.New("pricing: base price must not be negative")
	// ErrDiscountRange is returned for a discount outside [0,100].
	ErrDiscountRange = errors.New("pricing: discount percent must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)

// FinalPrice returns floor(basePrice * (1 - discountPercent/100)).
// A zero discount returns basePrice untouched. The arithmetic runs on
// decimals so 15% of 100000 is exactly 85000.
func FinalPrice(basePrice int64, discountPercent float64) (int64, error) {
	if basePrice < 0 {
		return 0, ErrNegativePrice
	}
	if err := ValidateDiscount(discountPercent); err != nil {
		return 0, err
	}
	if discountPercent == 0 {
		return basePrice, nil
	}
	pct := decimal.NewFromFloat(discountPercent)
	factor := hundred.Sub(pct).Div(hundred)
	return decimal.NewFromInt(basePrice).Mul(factor).Floor().IntPart(), nil
}

// ValidateDiscount checks that pct is a usable discount percentage.
func ValidateDiscount(pct float64) error {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return ErrDiscountRange
	}
	return nil
}
