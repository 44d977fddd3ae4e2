package processors

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

// WalletValuator values the wallets of one ledger in fiat.
type WalletValuator struct {
	ledger  *Ledger
	rates   RateProvider
	workers int

	mu      sync.Mutex
	missing []models.MissingRate
	seen    map[missingKey]bool
}

// missingKey identifies a missing rate; one report per pair and hour bucket.
type missingKey struct {
	pair string
	hour int64
}

func NewWalletValuator(ledger *Ledger, rates RateProvider, workers int) *WalletValuator {
	if workers < 1 {
		workers = 1
	}
	return &WalletValuator{ledger: ledger, rates: rates, workers: workers, seen: make(map[missingKey]bool)}
}

var _ PortfolioValuer = (*WalletValuator)(nil)

// WalletValueAt returns the fiat value of the crypto wallet at t. An empty
// wallet is worth zero without any price lookup. A wallet whose price cannot
// be found is also worth zero; the miss is logged and kept for the report.
func (v *WalletValuator) WalletValueAt(ctx context.Context, crypto, fiat string, t time.Time) (decimal.Decimal, error) {
	balance, err := v.ledger.BalanceAt(crypto, t)
	if err != nil {
		return decimal.Zero, err
	}
	if balance.IsZero() {
		return decimal.Zero, nil
	}
	if crypto == fiat {
		return balance, nil
	}

	pair := models.Pair(crypto, fiat)
	rate, err := v.rates.RateAt(ctx, pair, t)
	if err != nil && !errors.Is(err, ErrNoRateFound) {
		return decimal.Zero, err
	}
	if rate.IsZero() {
		logger.L.Warn("No rate found for a non-empty wallet, counting it as zero",
			"platform", v.ledger.Platform(), "pair", pair, "at", t, "balance", balance.String())
		hour, _ := HourBucket(t)
		v.mu.Lock()
		if key := (missingKey{pair, hour.Unix()}); !v.seen[key] {
			v.seen[key] = true
			v.missing = append(v.missing, models.MissingRate{Platform: v.ledger.Platform(), Pair: pair, At: t, Balance: balance})
		}
		v.mu.Unlock()
		return decimal.Zero, nil
	}

	return rate.Mul(balance), nil
}

// PortfolioValueAt sums the value of every wallet except the fiat one.
func (v *WalletValuator) PortfolioValueAt(ctx context.Context, fiat string, t time.Time) (decimal.Decimal, error) {
	accounts := v.ledger.Accounts()
	values := make([]decimal.Decimal, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)
	for i, account := range accounts {
		if account.Currency == fiat {
			continue
		}
		i, account := i, account
		g.Go(func() error {
			value, err := v.WalletValueAt(gctx, account.Currency, fiat, t)
			if err != nil {
				return err
			}
			values[i] = value
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return decimal.Zero, err
	}

	// summed in account order so the result does not depend on scheduling
	total := decimal.Zero
	for _, value := range values {
		total = total.Add(value)
	}
	logger.L.Debug("Portfolio valued", "platform", v.ledger.Platform(), "fiat", fiat, "at", t, "value", total.String())
	return total, nil
}

// MissingRates returns the wallets valued at zero for lack of a price, once
// per pair and hour, in date order.
func (v *WalletValuator) MissingRates() []models.MissingRate {
	v.mu.Lock()
	missing := append([]models.MissingRate(nil), v.missing...)
	v.mu.Unlock()
	sort.SliceStable(missing, func(i, j int) bool {
		if !missing[i].At.Equal(missing[j].At) {
			return missing[i].At.Before(missing[j].At)
		}
		return missing[i].Pair < missing[j].Pair
	})
	return missing
}
