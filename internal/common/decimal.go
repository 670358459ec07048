package common

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a decimal string, treating the empty string as zero.
func ParseDecimal(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(trimmed)
}
