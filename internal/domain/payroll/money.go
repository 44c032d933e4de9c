package payroll

import "github.com/shopspring/decimal"

func amount(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

func cents(value decimal.Decimal) float64 {
	return value.Round(2).InexactFloat64()
}

func roundCents(value float64) float64 {
	return cents(amount(value))
}

func maxZero(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}
