package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aapl", "AAPL"},
		{"  btc ", "BTC"},
		{"600519", "600519.SS"},
		{"000001", "000001.SZ"},
		{"300750", "300750.SZ"},
		{"600519.SS", "600519.SS"},
		{"12345", "12345"},
		{"1234567", "1234567"},
		{"60051A", "60051A"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSymbol(tt.in), "input %q", tt.in)
	}
}
