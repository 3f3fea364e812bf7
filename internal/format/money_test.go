package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoney(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		amount   float64
		currency string
		want     string
	}{
		{"dollars", 1155, "USD", "$1,155.00"},
		{"rounds to cents", 0.105, "USD", "$0.11"},
		{"negative", -12.5, "USD", "-$12.50"},
		{"unknown currency", 3.14159, "XXX1", "3.14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Money(tt.amount, tt.currency))
		})
	}
}

func TestPercentAndUnits(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "4.2%", Percent(4.234))
	assert.Equal(t, "1100", Units(1100))
	assert.Equal(t, "0.426", Units(0.426))
}
