package domain

import "fmt"

// Money is a currency amount in minor units (VND has no fractional unit,
// so 1 Money == 1 VND). Integer arithmetic only; balances must never be
// represented as binary floating point.
type Money int64

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return m + other
}

// Sub returns m - other. The result may be negative; callers that apply
// the result to a balance must reject negative values.
func (m Money) Sub(other Money) Money {
	return m - other
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m > 0
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m < 0
}

// Int64 returns the raw minor-unit value.
func (m Money) Int64() int64 {
	return int64(m)
}

func (m Money) String() string {
	return fmt.Sprintf("%d", int64(m))
}
