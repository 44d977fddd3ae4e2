package processors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
)

// RateProvider resolves the rate of a pair at an instant.
type RateProvider interface {
	RateAt(ctx context.Context, pair string, t time.Time) (decimal.Decimal, error)
}

// RateFinder asks each price source in turn and keeps the first non-zero
// rate. When all of them are empty the manual fallback, if any, is asked.
type RateFinder struct {
	sources []PriceSource
	manual  ManualRateFunc

	// manual entry is interactive, one prompt at a time
	manualMu sync.Mutex
}

func NewRateFinder(sources []PriceSource, manual ManualRateFunc) *RateFinder {
	return &RateFinder{sources: sources, manual: manual}
}

var _ RateProvider = (*RateFinder)(nil)

func (f *RateFinder) RateAt(ctx context.Context, pair string, t time.Time) (decimal.Decimal, error) {
	for _, src := range f.sources {
		rate, err := src.RateOf(ctx, pair, t)
		if err != nil {
			return decimal.Zero, fmt.Errorf("price source %s failed for %s at %s: %w", src.Name(), pair, t.Format(time.RFC3339), err)
		}
		if rate.IsPositive() {
			return rate, nil
		}
		logger.L.Info("Price source has no volume for pair, trying next one", "source", src.Name(), "pair", pair, "at", t)
	}

	if f.manual != nil {
		f.manualMu.Lock()
		defer f.manualMu.Unlock()
		rate, err := f.manual(ctx, pair, t)
		if err != nil {
			return decimal.Zero, fmt.Errorf("manual rate entry failed for %s: %w", pair, err)
		}
		if rate.IsPositive() {
			return rate, nil
		}
	}

	return decimal.Zero, fmt.Errorf("%w: %s at %s", ErrNoRateFound, pair, t.Format(time.RFC3339))
}
