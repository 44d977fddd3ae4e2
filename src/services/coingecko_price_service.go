package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	coingecko "github.com/superoo7/go-gecko/v3"
	"golang.org/x/time/rate"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/utils"
)

// CoinGeckoPriceService is a coarse last resort: CoinGecko history only has
// one price per day, taken at 00:00 UTC. Unknown tickers and days without
// market data read as "no price"; request failures are returned.
type CoinGeckoPriceService struct {
	client  *coingecko.Client
	limiter *rate.Limiter
}

func NewCoinGeckoPriceService(httpClient *http.Client, limiter *rate.Limiter) *CoinGeckoPriceService {
	return &CoinGeckoPriceService{
		client:  coingecko.NewClient(httpClient),
		limiter: limiter,
	}
}

var _ processors.PriceSource = (*CoinGeckoPriceService)(nil)

func (s *CoinGeckoPriceService) Name() string { return "coingecko" }

func (s *CoinGeckoPriceService) RateOf(ctx context.Context, pair string, t time.Time) (decimal.Decimal, error) {
	crypto, fiat, ok := strings.Cut(pair, "-")
	if !ok {
		return decimal.Zero, nil
	}
	id, ok := utils.CoinGeckoID(crypto)
	if !ok {
		logger.L.Debug("No CoinGecko id for ticker", "ticker", crypto)
		return decimal.Zero, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	details, err := s.client.CoinsIDHistory(id, t.UTC().Format("02-01-2006"), false)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko history of %s on %s: %w", id, t.UTC().Format(utils.DefaultDateFormat), err)
	}
	if details == nil || details.MarketData == nil {
		return decimal.Zero, nil
	}
	price, ok := details.MarketData.CurrentPrice[strings.ToLower(fiat)]
	if !ok || price <= 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(price), nil
}
