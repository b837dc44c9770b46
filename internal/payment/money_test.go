package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMajorToMinor(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"49.99", 4999},
		{"0.01", 1},
		{"0", 0},
		{"100", 10000},
		{"19.5", 1950},
		{"1234567.89", 123456789},
		// Sub-cent precision rounds to the nearest cent.
		{"0.005", 1},
		{"0.004", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MajorToMinor(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestMinorToMajor(t *testing.T) {
	assert.True(t, decimal.RequireFromString("49.99").Equal(MinorToMajor(4999)))
	assert.True(t, decimal.RequireFromString("0.01").Equal(MinorToMajor(1)))
	assert.True(t, decimal.Zero.Equal(MinorToMajor(0)))
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, s := range []string{"0.00", "0.01", "0.99", "1.00", "49.99", "129.90", "999999.99"} {
		amount := decimal.RequireFromString(s)
		back := MinorToMajor(MajorToMinor(amount))
		assert.True(t, amount.Equal(back), "round trip of %s gave %s", s, back)
	}
}
