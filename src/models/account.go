package models

import "github.com/shopspring/decimal"

// Account is a per-currency balance held on one platform, as reported at
// snapshot time.
type Account struct {
	ID       string          `json:"id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}
