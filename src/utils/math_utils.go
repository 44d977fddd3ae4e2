package utils

import "github.com/shopspring/decimal"

// FormatFiat rounds half to even at two decimals. Amounts are only ever
// rounded for display.
func FormatFiat(d decimal.Decimal) string {
	return d.StringFixedBank(2)
}
