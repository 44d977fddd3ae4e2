package processors

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

// Dialect turns the raw movements of a ledger into normalized trades of one
// kind. Only completed movements created strictly before end are considered.
type Dialect interface {
	Classify(ctx context.Context, ledger *Ledger, kind models.TradeKind, fiat string, end time.Time) (*models.TradeIterator, error)
}

// Classifier binds a ledger to the dialect of its platform.
type Classifier struct {
	ledger  *Ledger
	dialect Dialect
}

func NewClassifier(ledger *Ledger, dialect Dialect) *Classifier {
	return &Classifier{ledger: ledger, dialect: dialect}
}

var _ TradeClassifier = (*Classifier)(nil)

func (c *Classifier) Buys(ctx context.Context, fiat string, end time.Time) (*models.TradeIterator, error) {
	return c.dialect.Classify(ctx, c.ledger, models.TradeBuy, fiat, end)
}

func (c *Classifier) Sells(ctx context.Context, fiat string, end time.Time) (*models.TradeIterator, error) {
	return c.dialect.Classify(ctx, c.ledger, models.TradeSell, fiat, end)
}

func inWindow(tx models.Transaction, end time.Time) bool {
	return tx.Completed() && tx.CreatedAt.Before(end)
}

// MatchDialect reads "match" movements on the fiat account. A credit of fiat
// is a sell, a debit is a buy. Fees are separate fee movements sharing the
// order and trade ids of the match.
type MatchDialect struct{}

type feeKey struct {
	orderID string
	tradeID string
}

func (MatchDialect) Classify(ctx context.Context, ledger *Ledger, kind models.TradeKind, fiat string, end time.Time) (*models.TradeIterator, error) {
	if kind != models.TradeBuy && kind != models.TradeSell {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTradeKind, kind)
	}
	account, err := ledger.Account(fiat)
	if err != nil {
		return nil, err
	}

	fees := make(map[feeKey]decimal.Decimal)
	for _, fee := range ledger.Fees() {
		fees[feeKey{fee.OrderID, fee.TradeID}] = fee.Amount.Abs()
	}

	movements := ledger.Movements(account.ID)
	i := 0
	return models.NewTradeIterator(func() (models.Trade, bool, error) {
		for i < len(movements) {
			tx := movements[i]
			i++
			if tx.Type != models.TypeMatch || !inWindow(tx, end) {
				continue
			}
			isSell := !tx.Amount.IsNegative()
			if isSell != (kind == models.TradeSell) {
				continue
			}
			if tx.Currency != "" && tx.Currency != fiat {
				return models.Trade{}, false, fmt.Errorf("%w: %s movement %s is in %s", ErrCurrencyMismatch, ledger.Platform(), tx.ID, tx.Currency)
			}
			fee, ok := fees[feeKey{tx.OrderID, tx.TradeID}]
			if !ok {
				fee = decimal.Zero
			}
			logger.L.Debug("Classified match movement", "platform", ledger.Platform(), "kind", kind, "date", tx.CreatedAt, "amount", tx.Amount.String(), "fee", fee.String())
			return models.Trade{
				Kind:     kind,
				Date:     tx.CreatedAt,
				Currency: fiat,
				Amount:   tx.Amount.Abs(),
				Fee:      fee,
				Platform: ledger.Platform(),
			}, true, nil
		}
		return models.Trade{}, false, nil
	}), nil
}

// TaggedDialect reads "buy" and "sell" movements on the crypto accounts. The
// amount is the native fiat counter value and the fee comes from the full
// trade object.
type TaggedDialect struct {
	Fetcher TradeDetailFetcher
}

func (d TaggedDialect) Classify(ctx context.Context, ledger *Ledger, kind models.TradeKind, fiat string, end time.Time) (*models.TradeIterator, error) {
	var tag string
	switch kind {
	case models.TradeBuy:
		tag = models.TypeBuy
	case models.TradeSell:
		tag = models.TypeSell
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTradeKind, kind)
	}
	if _, err := ledger.Account(fiat); err != nil {
		return nil, err
	}

	var accounts []models.Account
	for _, a := range ledger.Accounts() {
		if a.Currency != fiat {
			accounts = append(accounts, a)
		}
	}

	accountIdx, movementIdx := 0, 0
	return models.NewTradeIterator(func() (models.Trade, bool, error) {
		for accountIdx < len(accounts) {
			movements := ledger.Movements(accounts[accountIdx].ID)
			if movementIdx >= len(movements) {
				accountIdx++
				movementIdx = 0
				continue
			}
			tx := movements[movementIdx]
			movementIdx++
			if tx.Type != tag || !inWindow(tx, end) {
				continue
			}
			if tx.NativeCurrency != fiat {
				return models.Trade{}, false, fmt.Errorf("%w: %s %s %s is valued in %s", ErrCurrencyMismatch, ledger.Platform(), tag, tx.ID, tx.NativeCurrency)
			}
			fee := decimal.Zero
			if d.Fetcher != nil {
				f, err := d.Fetcher.FetchTradeFee(ctx, tx)
				if err != nil {
					return models.Trade{}, false, fmt.Errorf("failed to fetch fee of %s %s: %w", tag, tx.ID, err)
				}
				fee = f.Abs()
			}
			logger.L.Debug("Classified tagged movement", "platform", ledger.Platform(), "kind", kind, "date", tx.CreatedAt, "amount", tx.NativeAmount.String(), "fee", fee.String())
			return models.Trade{
				Kind:     kind,
				Date:     tx.CreatedAt,
				Currency: fiat,
				Amount:   tx.NativeAmount.Abs(),
				Fee:      fee,
				Platform: ledger.Platform(),
			}, true, nil
		}
		return models.Trade{}, false, nil
	}), nil
}
