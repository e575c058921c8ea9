package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{"No Change", 850.00, 850.00},
		{"Rounds Down", 85.004, 85.00},
		{"Rounds Half Up", 85.005, 85.01},
		{"Rounds Up", 85.009, 85.01},
		{"Discount Arithmetic", 1700 * 0.15, 255.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Round2(tt.input), 1e-9)
		})
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "850.00", FormatMoney(850))
	assert.Equal(t, "1445.50", FormatMoney(1445.5))
}

func TestAmountsEqual(t *testing.T) {
	assert.True(t, AmountsEqual(850.00, 850.005))
	assert.True(t, AmountsEqual(0.1+0.2, 0.3))
	assert.False(t, AmountsEqual(850.00, 850.02))
}

func TestAmountCovers(t *testing.T) {
	assert.True(t, AmountCovers(850.00, 850.00))
	assert.True(t, AmountCovers(850.00, 850.005))
	assert.True(t, AmountCovers(900.00, 850.00))
	assert.False(t, AmountCovers(849.50, 850.00))
}
