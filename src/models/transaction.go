package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Movement types found on exchange ledgers.
const (
	TypeMatch      = "match"
	TypeFee        = "fee"
	TypeTransfer   = "transfer"
	TypeBuy        = "buy"
	TypeSell       = "sell"
	TypeSend       = "send"
	TypeConversion = "conversion"
)

// Movement statuses.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Transaction is a single signed movement on one account. Amount is positive
// for credits and negative for debits.
type Transaction struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	Status    string          `json:"status"`

	// Match dialect correlation keys.
	OrderID string `json:"order_id,omitempty"`
	TradeID string `json:"trade_id,omitempty"`

	// Tagged dialect fields: the fiat counter value and the id of the
	// buy/sell object holding the fee.
	NativeAmount   decimal.Decimal `json:"native_amount"`
	NativeCurrency string          `json:"native_currency,omitempty"`
	TradeRef       string          `json:"trade_ref,omitempty"`
}

// Completed reports whether the movement settled. Ledgers that carry no
// status (Coinbase Exchange) only list settled movements.
func (t Transaction) Completed() bool {
	return t.Status == "" || t.Status == StatusCompleted
}

// IsFee reports whether the movement is a fee debit.
func (t Transaction) IsFee() bool {
	return t.Type == TypeFee
}
