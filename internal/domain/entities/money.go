package entities

import "fmt"

// Money is a fixed-point amount stored as minor units (cents) to avoid float
// rounding error in payment arithmetic").
type Money struct {
	MinorUnits int64
	Currency   string
}

// NewMoney builds a Money from a major-unit float (e.g. 20.93) and a
// 3-letter currency code, rounding to the nearest cent.
func NewMoney(major float64, currency string) Money {
	return Money{MinorUnits: int64(major*100 + 0.5), Currency: currency}
}

// Float64 returns the amount in major units.
func (m Money) Float64() float64 {
	return float64(m.MinorUnits) / 100
}

// String renders the amount with its currency code, e.g. "20.93 USD".
func (m Money) String() string {
	return fmt.Sprintf("%.2f %s", m.Float64(), m.Currency)
}
