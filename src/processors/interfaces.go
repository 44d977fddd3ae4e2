package processors

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

// LedgerSource lists the accounts and movements of one platform. Both calls
// return the fully drained result of any pagination.
type LedgerSource interface {
	Name() string
	ListAccounts(ctx context.Context) ([]models.Account, error)
	ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error)
}

// TradeDetailFetcher resolves the fee of a tagged buy/sell movement from the
// full trade object.
type TradeDetailFetcher interface {
	FetchTradeFee(ctx context.Context, tx models.Transaction) (decimal.Decimal, error)
}

// PriceSource returns the volume weighted average price of pair over the hour
// bucket containing t. A zero rate means no trading volume was found.
type PriceSource interface {
	Name() string
	RateOf(ctx context.Context, pair string, t time.Time) (decimal.Decimal, error)
}

// ManualRateFunc is consulted when every PriceSource came back empty.
type ManualRateFunc func(ctx context.Context, pair string, t time.Time) (decimal.Decimal, error)

// TradeClassifier produces the buy and sell streams of one platform, bounded
// by an exclusive end instant.
type TradeClassifier interface {
	Buys(ctx context.Context, fiat string, end time.Time) (*models.TradeIterator, error)
	Sells(ctx context.Context, fiat string, end time.Time) (*models.TradeIterator, error)
}

// PortfolioValuer values every non-fiat wallet of one platform at an instant.
type PortfolioValuer interface {
	PortfolioValueAt(ctx context.Context, fiat string, t time.Time) (decimal.Decimal, error)
}

// Platform is what the capital gains engine needs from each exchange.
type Platform interface {
	Name() string
	TradeClassifier
	PortfolioValuer
}
