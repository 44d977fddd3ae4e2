package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// Trade is a normalized fiat-denominated buy or sell. Amount and Fee are
// never negative; the direction lives in Kind.
type Trade struct {
	Kind     TradeKind       `json:"kind"`
	Date     time.Time       `json:"date"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Fee      decimal.Decimal `json:"fee"`
	Platform string          `json:"platform"`
}

// TradeIterator is a lazy, single-pass sequence of trades. Use it like
// sql.Rows:
//
//	for it.Next() {
//		t := it.Trade()
//	}
//	if err := it.Err(); err != nil { ... }
type TradeIterator struct {
	next func() (Trade, bool, error)
	cur  Trade
	err  error
	done bool
}

// NewTradeIterator wraps a generator. next returns ok=false once exhausted.
func NewTradeIterator(next func() (Trade, bool, error)) *TradeIterator {
	return &TradeIterator{next: next}
}

// TradesOf iterates over an in-memory slice.
func TradesOf(trades []Trade) *TradeIterator {
	i := 0
	return NewTradeIterator(func() (Trade, bool, error) {
		if i >= len(trades) {
			return Trade{}, false, nil
		}
		i++
		return trades[i-1], true, nil
	})
}

func (it *TradeIterator) Next() bool {
	if it.done {
		return false
	}
	t, ok, err := it.next()
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	if !ok {
		it.done = true
		return false
	}
	it.cur = t
	return true
}

func (it *TradeIterator) Trade() Trade {
	return it.cur
}

func (it *TradeIterator) Err() error {
	return it.err
}

// Drain consumes the iterator and returns every trade it yields.
func (it *TradeIterator) Drain() ([]Trade, error) {
	var out []Trade
	for it.Next() {
		out = append(out, it.Trade())
	}
	return out, it.Err()
}
