package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MissingRate marks a wallet that was valued at zero because no price
// could be found for a non-zero balance.
type MissingRate struct {
	Platform string          `json:"platform"`
	Pair     string          `json:"pair"`
	At       time.Time       `json:"at"`
	Balance  decimal.Decimal `json:"balance"`
}

// Pair builds the "CRYPTO-FIAT" product identifier.
func Pair(crypto, fiat string) string {
	return crypto + "-" + fiat
}
