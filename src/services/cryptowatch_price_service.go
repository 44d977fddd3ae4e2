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

type cryptowatchOHLCResponse struct {
	Result map[string][][]json.Number `json:"result"`
	Error  string                     `json:"error"`
}

// CryptowatchPriceService averages one minute OHLC candles of a Cryptowatch
// market using the reported quote volume.
type CryptowatchPriceService struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewCryptowatchPriceService(baseURL, apiKey, exchange string, httpClient *http.Client, limiter *rate.Limiter) *CryptowatchPriceService {
	return &CryptowatchPriceService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		exchange:   exchange,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

var _ processors.PriceSource = (*CryptowatchPriceService)(nil)

func (s *CryptowatchPriceService) Name() string { return "cryptowatch" }

func (s *CryptowatchPriceService) RateOf(ctx context.Context, pair string, t time.Time) (decimal.Decimal, error) {
	start, end := processors.HourBucket(t)
	market := strings.ToLower(strings.ReplaceAll(pair, "-", ""))

	params := url.Values{}
	params.Set("after", fmt.Sprint(start.Unix()))
	params.Set("before", fmt.Sprint(end.Unix()))
	params.Set("periods", fmt.Sprint(candleGranularity))
	ohlcURL := fmt.Sprintf("%s/markets/%s/%s/ohlc?%s", s.baseURL, s.exchange, market, params.Encode())

	if err := s.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ohlcURL, nil)
	if err != nil {
		return decimal.Zero, err
	}
	if s.apiKey != "" {
		req.Header.Set("X-CW-API-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to call Cryptowatch OHLC API for %s: %w", pair, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		logger.L.Debug("Cryptowatch has no such market", "exchange", s.exchange, "market", market)
		return decimal.Zero, nil
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, utils.ReadError(resp)
	}

	var body cryptowatchOHLCResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode Cryptowatch OHLC for %s: %w", pair, err)
	}
	if body.Error != "" {
		return decimal.Zero, fmt.Errorf("cryptowatch error for %s: %s", pair, body.Error)
	}

	// [close time, open, high, low, close, volume, quote volume]
	rows := body.Result[fmt.Sprint(candleGranularity)]
	candles := make([]processors.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		values, err := decimals(row[:7])
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid Cryptowatch candle for %s: %w", pair, err)
		}
		candles = append(candles, processors.Candle{
			Time:        time.Unix(values[0].IntPart(), 0).UTC(),
			Open:        values[1],
			High:        values[2],
			Low:         values[3],
			Close:       values[4],
			Volume:      values[5],
			QuoteVolume: values[6],
		})
	}

	vwap := processors.QuoteVWAP(candles)
	logger.L.Debug("Cryptowatch rate", "pair", pair, "hour", start, "candles", len(candles), "rate", vwap.String())
	return vwap, nil
}
