package payment

import "github.com/shopspring/decimal"

// MajorToMinor converts an amount in major currency units to the gateway's
// minor units: multiply by 100 and round to the nearest integer. The
// rounding must match the gateway's expectation exactly; an off-by-one-cent
// mismatch fails settlement.
func MajorToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// MinorToMajor converts a gateway-reported minor-unit amount back to major
// units by shifting the exponent, so the round trip is exact for any amount
// representable with two decimal places.
func MinorToMajor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
