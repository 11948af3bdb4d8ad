package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents).
type Money int64

const minorUnitDigits = 2

// MoneyFromDecimal converts a boundary decimal into minor units. Negative
// amounts, amounts finer than a cent and amounts above MaxAmount are rejected.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", d.String())
	}
	shifted := d.Shift(minorUnitDigits)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), minorUnitDigits)
	}
	if shifted.GreaterThan(decimal.NewFromInt(int64(MaxAmount))) {
		return 0, fmt.Errorf("amount %s exceeds the supported range", d.String())
	}
	return Money(shifted.IntPart()), nil
}

func (m Money) Decimal() decimal.Decimal { return decimal.New(int64(m), -minorUnitDigits) }

func (m Money) String() string { return m.Decimal().StringFixed(minorUnitDigits) }
