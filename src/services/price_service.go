package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/utils"
)

const candleGranularity = 60 // seconds

// CoinbaseExchangePriceService averages the one minute candles of the
// Coinbase Exchange market data API over an hour.
type CoinbaseExchangePriceService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewCoinbaseExchangePriceService(baseURL string, httpClient *http.Client, limiter *rate.Limiter) *CoinbaseExchangePriceService {
	return &CoinbaseExchangePriceService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
	}
}

var _ processors.PriceSource = (*CoinbaseExchangePriceService)(nil)

func (s *CoinbaseExchangePriceService) Name() string { return "coinbasepro" }

func (s *CoinbaseExchangePriceService) RateOf(ctx context.Context, pair string, t time.Time) (decimal.Decimal, error) {
	start, end := processors.HourBucket(t)

	params := url.Values{}
	params.Set("granularity", fmt.Sprint(candleGranularity))
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))
	candlesURL := fmt.Sprintf("%s/products/%s/candles?%s", s.baseURL, url.PathEscape(pair), params.Encode())

	if err := s.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candlesURL, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fiscal-crypt")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to call Coinbase Exchange candles API for %s: %w", pair, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		logger.L.Debug("Coinbase Exchange does not list this product", "pair", pair)
		return decimal.Zero, nil
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, utils.ReadError(resp)
	}

	// [time, low, high, open, close, volume]
	var rows [][]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode Coinbase Exchange candles for %s: %w", pair, err)
	}

	candles := make([]processors.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		values, err := decimals(row[:6])
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid Coinbase Exchange candle for %s: %w", pair, err)
		}
		openedAt := time.Unix(values[0].IntPart(), 0).UTC()
		if openedAt.Before(start) || !openedAt.Before(end) {
			continue
		}
		candles = append(candles, processors.Candle{
			Time:   openedAt,
			Low:    values[1],
			High:   values[2],
			Open:   values[3],
			Close:  values[4],
			Volume: values[5],
		})
	}

	vwap := processors.MidpointVWAP(candles)
	logger.L.Debug("Coinbase Exchange rate", "pair", pair, "hour", start, "candles", len(candles), "rate", vwap.String())
	return vwap, nil
}

func decimals(numbers []json.Number) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(numbers))
	for i, n := range numbers {
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
