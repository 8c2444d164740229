package payment

import "github.com/shopspring/decimal"

// MaxMinorUnits is the largest amount a single checkout may charge
// (999,999.99 in major units), the provider's per-charge ceiling.
const MaxMinorUnits = 99999999

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(MaxMinorUnits)
)

// ToMinorUnits converts a major-unit cost into minor units, truncating
// any fraction of a minor unit (12.349 -> 1234).  It works on the
// shortest decimal form of the float so values like 19.99 do not lose a
// cent to binary rounding.  Amounts below one minor unit or above
// MaxMinorUnits are rejected with ErrInvalidAmount.
func ToMinorUnits(cost float64) (int64, error) {
	minor := decimal.NewFromFloat(cost).Mul(hundred).Truncate(0)
	if minor.LessThan(decimal.NewFromInt(1)) || minor.GreaterThan(maxMinor) {
		return 0, ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts minor units back to a major-unit amount.
func FromMinorUnits(minor int64) float64 {
	return decimal.New(minor, -2).InexactFloat64()
}
