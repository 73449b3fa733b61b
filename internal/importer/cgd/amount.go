package cgd

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount reads a Portuguese formatted amount such as "1.234,56" or
// "-588,74".
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	return decimal.NewFromString(strings.TrimSpace(s))
}
