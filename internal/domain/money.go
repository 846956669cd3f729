package domain

import "github.com/shopspring/decimal"

// centsExp is the decimal exponent of one stored unit.
const centsExp = -2

// CentsToDecimal converts a stored integer amount to major units.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, centsExp)
}

// FormatCents renders cents with exactly two decimal places.
func FormatCents(cents int64) string {
	return CentsToDecimal(cents).StringFixed(-centsExp)
}
