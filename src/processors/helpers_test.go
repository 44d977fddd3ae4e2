package processors

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeRates serves fixed rates per pair and counts lookups.
type fakeRates struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
	err   error
	calls []string
}

func (f *fakeRates) RateAt(_ context.Context, pair string, _ time.Time) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pair)
	if f.err != nil {
		return decimal.Zero, f.err
	}
	rate, ok := f.rates[pair]
	if !ok {
		return decimal.Zero, ErrNoRateFound
	}
	return rate, nil
}

type staticSource struct {
	name  string
	rate  decimal.Decimal
	err   error
	calls int
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) RateOf(context.Context, string, time.Time) (decimal.Decimal, error) {
	s.calls++
	return s.rate, s.err
}

type fakeFetcher map[string]decimal.Decimal

func (f fakeFetcher) FetchTradeFee(_ context.Context, tx models.Transaction) (decimal.Decimal, error) {
	fee, ok := f[tx.TradeRef]
	if !ok {
		return decimal.Zero, errors.New("trade not found")
	}
	return fee, nil
}

// fakePlatform replays fixed trade lists and values its portfolio with a
// function of time.
type fakePlatform struct {
	name    string
	buys    []models.Trade
	sells   []models.Trade
	value   func(time.Time) decimal.Decimal
	listErr error

	mu      sync.Mutex
	valued  []time.Time
	missing []models.MissingRate
}

func (p *fakePlatform) Name() string { return p.name }

func (p *fakePlatform) Buys(_ context.Context, _ string, end time.Time) (*models.TradeIterator, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	return models.TradesOf(before(p.buys, end)), nil
}

func (p *fakePlatform) Sells(_ context.Context, _ string, end time.Time) (*models.TradeIterator, error) {
	return models.TradesOf(before(p.sells, end)), nil
}

func (p *fakePlatform) PortfolioValueAt(_ context.Context, _ string, t time.Time) (decimal.Decimal, error) {
	p.mu.Lock()
	p.valued = append(p.valued, t)
	p.mu.Unlock()
	if p.value == nil {
		return decimal.Zero, nil
	}
	return p.value(t), nil
}

func (p *fakePlatform) MissingRates() []models.MissingRate { return p.missing }

func before(trades []models.Trade, end time.Time) []models.Trade {
	var out []models.Trade
	for _, t := range trades {
		if t.Date.Before(end) {
			out = append(out, t)
		}
	}
	return out
}

func constant(v string) func(time.Time) decimal.Decimal {
	return func(time.Time) decimal.Decimal { return dec(v) }
}
