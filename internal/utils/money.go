package utils

import (
	"fmt"
	"math"
)

// AmountEpsilon is the tolerance used when comparing monetary amounts that
// went through floating point arithmetic.
const AmountEpsilon = 0.01

// Round2 rounds an amount to 2 decimal places using standard half-up rounding.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// FormatMoney keeps consistent decimal formatting for currency fields.
func FormatMoney(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// AmountsEqual compares two amounts within AmountEpsilon.
func AmountsEqual(a, b float64) bool {
	return math.Abs(a-b) < AmountEpsilon
}

// AmountCovers reports whether paid covers required within AmountEpsilon.
func AmountCovers(paid, required float64) bool {
	return paid >= required-AmountEpsilon
}
