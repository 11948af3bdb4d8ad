package domain

import "math"

const (
	// MaxQuantity bounds a single order or command line and any merged line.
	MaxQuantity int64 = 1_000_000
	// MaxStock bounds an administratively set stock row.
	MaxStock int64 = 1_000_000_000_000
	// MaxAmount bounds any single price and any computed total.
	MaxAmount Money = 100_000_000_000
)

func outOfRange(field string) error {
	return &ValidationError{Field: field, Reason: "exceeds the supported range"}
}

// CheckQuantity validates one line quantity: 1..MaxQuantity.
func CheckQuantity(field string, q int64) error {
	if q < 1 {
		return &ValidationError{Field: field, Reason: "must be >= 1"}
	}
	if q > MaxQuantity {
		return outOfRange(field)
	}
	return nil
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	return c, c/b == a
}

func addInt64(a, b int64) (int64, bool) {
	c := a + b
	return c, (c > a) == (b > 0)
}

// MulQuantity is a*b, or a ValidationError on field when it overflows.
func MulQuantity(field string, a, b int64) (int64, error) {
	c, ok := mulInt64(a, b)
	if !ok {
		return 0, outOfRange(field)
	}
	return c, nil
}

// CheckedMul is m*n bounded by MaxAmount.
func (m Money) CheckedMul(field string, n int64) (Money, error) {
	c, ok := mulInt64(int64(m), n)
	if !ok || Money(c) > MaxAmount || Money(c) < -MaxAmount {
		return 0, outOfRange(field)
	}
	return Money(c), nil
}

// CheckedAdd is m+o bounded by MaxAmount.
func (m Money) CheckedAdd(field string, o Money) (Money, error) {
	c, ok := addInt64(int64(m), int64(o))
	if !ok || Money(c) > MaxAmount || Money(c) < -MaxAmount {
		return 0, outOfRange(field)
	}
	return Money(c), nil
}
