package processors

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

// justBefore is how far before a sell the portfolio is valued, so that the
// sell itself is not yet reflected in the balances.
const justBefore = time.Millisecond

// shareScale is the number of decimal places kept on the prorata share of
// acquisition price; amounts are only rounded when displayed.
const shareScale = 28

// CapitalGainsProcessor computes declarations with the French weighted
// average acquisition price method.
type CapitalGainsProcessor struct {
	platforms []Platform
	now       func() time.Time
}

func NewCapitalGainsProcessor(platforms []Platform) *CapitalGainsProcessor {
	return &CapitalGainsProcessor{platforms: platforms, now: time.Now}
}

// DeclarationFor walks every trade before end in date order. Buys increase
// the total acquisition price; each sell realizes the share of gain matching
// its share of the whole portfolio value and depletes the acquisition price
// in the same ratio. Only sells on or after start are reported, but trades
// before start still build the acquisition price.
func (p *CapitalGainsProcessor) DeclarationFor(ctx context.Context, fiat string, start, end time.Time) (*models.Declaration, error) {
	logger.L.Info("Loading trades", "fiat", fiat, "platforms", len(p.platforms), "end", end)
	trades, err := p.mergedTrades(ctx, fiat, end)
	if err != nil {
		return nil, err
	}
	logger.L.Info("Processing trades to get capital gains", "trades", len(trades))

	decl := &models.Declaration{
		ID:               uuid.NewString(),
		Fiat:             fiat,
		Start:            start,
		End:              end,
		Records:          []models.DisposalRecord{},
		TotalCapitalGain: decimal.Zero,
		CreatedAt:        p.now().UTC(),
	}

	total := decimal.Zero
	for _, trade := range trades {
		switch trade.Kind {
		case models.TradeBuy:
			total = total.Add(trade.Amount)
			logger.L.Info("Buy operation", "date", trade.Date, "platform", trade.Platform,
				"amount", trade.Amount.StringFixedBank(2), "acquisitionPrice", total.StringFixedBank(2), "fiat", fiat)

		case models.TradeSell:
			global, err := p.portfolioValueAt(ctx, fiat, trade.Date.Add(-justBefore))
			if err != nil {
				return nil, err
			}
			if global.IsZero() {
				return nil, fmt.Errorf("%w: sell of %s %s on %s at %s",
					ErrInsufficientValuationData, trade.Amount.String(), fiat, trade.Platform, trade.Date.Format(time.RFC3339Nano))
			}

			share := trade.Amount.Mul(total).DivRound(global, shareScale)
			record := models.DisposalRecord{
				Date:             trade.Date,
				Platform:         trade.Platform,
				CessionPrice:     trade.Amount,
				Fee:              trade.Fee,
				AcquisitionPrice: total,
				GlobalValue:      global,
				CapitalGain:      trade.Amount.Sub(share),
			}
			total = total.Sub(share)

			if trade.Date.Before(start) {
				logger.L.Debug("Sell before declaration start, basis updated only", "date", trade.Date, "acquisitionPrice", total.String())
				continue
			}
			logger.L.Info("Sell operation",
				"date", trade.Date,
				"platform", trade.Platform,
				"capitalGain", record.CapitalGain.StringFixedBank(2),
				"cessionPrice", record.CessionPrice.StringFixedBank(2),
				"fee", record.Fee.StringFixedBank(2),
				"acquisitionPrice", record.AcquisitionPrice.StringFixedBank(2),
				"globalValue", record.GlobalValue.StringFixedBank(2),
				"fiat", fiat)
			decl.Records = append(decl.Records, record)
			decl.TotalCapitalGain = decl.TotalCapitalGain.Add(record.CapitalGain)

		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedTradeKind, trade.Kind)
		}
	}

	decl.TotalAcquisitionPrice = total
	// sells before start only build the acquisition price, their misses are not reported
	reportedFrom := start.Add(-justBefore)
	for _, platform := range p.platforms {
		if m, ok := platform.(interface{ MissingRates() []models.MissingRate }); ok {
			for _, missing := range m.MissingRates() {
				if !missing.At.Before(reportedFrom) {
					decl.MissingRates = append(decl.MissingRates, missing)
				}
			}
		}
	}
	logger.L.Info("Capital gains computed", "fiat", fiat, "disposals", len(decl.Records),
		"totalCapitalGain", decl.TotalCapitalGain.StringFixedBank(2), "missingRates", len(decl.MissingRates))
	return decl, nil
}

// mergedTrades collects the buys then the sells of every platform, in
// platform order, and sorts them by date. The sort is stable so same-instant
// trades keep that collection order.
func (p *CapitalGainsProcessor) mergedTrades(ctx context.Context, fiat string, end time.Time) ([]models.Trade, error) {
	var trades []models.Trade
	collect := func(kind models.TradeKind) error {
		for _, platform := range p.platforms {
			var it *models.TradeIterator
			var err error
			if kind == models.TradeBuy {
				it, err = platform.Buys(ctx, fiat, end)
			} else {
				it, err = platform.Sells(ctx, fiat, end)
			}
			if err != nil {
				return fmt.Errorf("failed to list %s trades of %s: %w", kind, platform.Name(), err)
			}
			batch, err := it.Drain()
			if err != nil {
				return fmt.Errorf("failed to list %s trades of %s: %w", kind, platform.Name(), err)
			}
			for i := range batch {
				batch[i].Kind = kind
				if batch[i].Platform == "" {
					batch[i].Platform = platform.Name()
				}
			}
			trades = append(trades, batch...)
		}
		return nil
	}
	if err := collect(models.TradeBuy); err != nil {
		return nil, err
	}
	if err := collect(models.TradeSell); err != nil {
		return nil, err
	}

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Date.Before(trades[j].Date)
	})
	return trades, nil
}

// portfolioValueAt sums the portfolio value of every platform.
func (p *CapitalGainsProcessor) portfolioValueAt(ctx context.Context, fiat string, t time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, platform := range p.platforms {
		value, err := platform.PortfolioValueAt(ctx, fiat, t)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to value %s portfolio: %w", platform.Name(), err)
		}
		total = total.Add(value)
	}
	return total, nil
}
