package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitFee(t *testing.T) {
	tests := []struct {
		total, rate, fee, net string
	}{
		{"100", "0.1", "10", "90"},
		{"0.05", "0.1", "0.01", "0.04"},
		{"33.33", "0.1", "3.33", "30"},
		{"19.99", "0.075", "1.5", "18.49"},
		{"50", "0", "0", "50"},
	}
	for _, tt := range tests {
		t.Run(tt.total+"@"+tt.rate, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			fee, net := SplitFee(total, decimal.RequireFromString(tt.rate))
			assert.True(t, fee.Equal(decimal.RequireFromString(tt.fee)), "fee %s", fee)
			assert.True(t, net.Equal(decimal.RequireFromString(tt.net)), "net %s", net)
			assert.True(t, fee.Add(net).Equal(total))
		})
	}
}
