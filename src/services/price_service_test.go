package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/utils"
)

var valuationInstant = time.Date(2021, 6, 30, 12, 34, 56, 0, time.UTC)

func TestCoinbaseExchangePriceService(t *testing.T) {
	g := NewGomegaWithT(t)
	hour := time.Date(2021, 6, 30, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/products/XYZ-EUR/candles" {
			http.NotFound(w, r)
			return
		}
		g.Expect(r.URL.Path).To(Equal("/products/BTC-EUR/candles"))
		g.Expect(r.URL.Query().Get("granularity")).To(Equal("60"))
		g.Expect(r.URL.Query().Get("start")).To(Equal("2021-06-30T12:00:00Z"))
		g.Expect(r.URL.Query().Get("end")).To(Equal("2021-06-30T13:00:00Z"))
		// newest first, the last row is outside the hour and ignored
		fmt.Fprintf(w, `[[%d, 20, 30, 21, 29, 3], [%d, 10, 20, 11, 19, 1], [%d, 1000, 1000, 1000, 1000, 50]]`,
			hour.Add(time.Minute).Unix(), hour.Unix(), hour.Add(time.Hour).Unix())
	}))
	defer server.Close()

	source := NewCoinbaseExchangePriceService(server.URL, server.Client(), utils.NewLimiter(0))
	rate, err := source.RateOf(context.Background(), "BTC-EUR", valuationInstant)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rate.String()).To(Equal("22.5"))

	rate, err = source.RateOf(context.Background(), "XYZ-EUR", valuationInstant)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rate.IsZero()).To(BeTrue())
}

func TestCoinbaseExchangePriceServiceErrors(t *testing.T) {
	g := NewGomegaWithT(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Too many requests"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewCoinbaseExchangePriceService(server.URL, server.Client(), utils.NewLimiter(0)).
		RateOf(context.Background(), "BTC-EUR", valuationInstant)
	g.Expect(err).To(MatchError(ContainSubstring("429")))
}

func TestCryptowatchPriceService(t *testing.T) {
	g := NewGomegaWithT(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.Expect(r.URL.Path).To(Equal("/markets/kraken/btceur/ohlc"))
		g.Expect(r.Header.Get("X-CW-API-Key")).To(Equal("cw-key"))
		g.Expect(r.URL.Query().Get("after")).To(Equal(fmt.Sprint(time.Date(2021, 6, 30, 12, 0, 0, 0, time.UTC).Unix())))
		g.Expect(r.URL.Query().Get("periods")).To(Equal("60"))
		fmt.Fprint(w, `{"result": {"60": [
			[1625054460, 30000, 30100, 29900, 30050, 2, 100],
			[1625054520, 30050, 30200, 30000, 30100, 3, 50]
		]}, "allowance": {"cost": 0.015}}`)
	}))
	defer server.Close()

	source := NewCryptowatchPriceService(server.URL, "cw-key", "kraken", server.Client(), utils.NewLimiter(0))
	rate, err := source.RateOf(context.Background(), "BTC-EUR", valuationInstant)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rate.String()).To(Equal("30"))
}

func TestCryptowatchPriceServiceReportsAPIError(t *testing.T) {
	g := NewGomegaWithT(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "Out of allowance"}`)
	}))
	defer server.Close()

	_, err := NewCryptowatchPriceService(server.URL, "", "kraken", server.Client(), utils.NewLimiter(0)).
		RateOf(context.Background(), "BTC-EUR", valuationInstant)
	g.Expect(err).To(MatchError(ContainSubstring("Out of allowance")))
}

// redirectTransport sends every request to a test server.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestCoinGeckoPriceService(t *testing.T) {
	g := NewGomegaWithT(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/coins/bitcoin/history"):
			g.Expect(r.URL.Query().Get("date")).To(Equal("30-06-2021"))
			fmt.Fprint(w, `{"id": "bitcoin", "symbol": "btc", "name": "Bitcoin",
				"market_data": {"current_price": {"eur": 29150.5, "usd": 34600.1}}}`)
		case strings.HasSuffix(r.URL.Path, "/coins/ethereum/history"):
			fmt.Fprint(w, `{"id": "ethereum", "symbol": "eth", "name": "Ethereum"}`)
		default:
			http.Error(w, `{"error":"coin not found"}`, http.StatusNotFound)
		}
	}))
	defer server.Close()

	target, _ := url.Parse(server.URL)
	client := &http.Client{Transport: redirectTransport{target: target}}
	source := NewCoinGeckoPriceService(client, utils.NewLimiter(0))

	rate, err := source.RateOf(context.Background(), "BTC-EUR", valuationInstant)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rate.String()).To(Equal("29150.5"))

	// no market data and unknown tickers read as no price
	rate, err = source.RateOf(context.Background(), "ETH-EUR", valuationInstant)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rate.IsZero()).To(BeTrue())

	rate, err = source.RateOf(context.Background(), "NOTACOIN-EUR", valuationInstant)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rate.IsZero()).To(BeTrue())

	_, err = source.RateOf(context.Background(), "DOGE-EUR", valuationInstant)
	g.Expect(err).To(MatchError(ContainSubstring("coin not found")))
}

func TestCoinGeckoThrottlingIsNotCached(t *testing.T) {
	g := NewGomegaWithT(t)
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"status":{"error_code":429,"error_message":"rate limited"}}`, http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"id": "bitcoin", "market_data": {"current_price": {"eur": 29150.5}}}`)
	}))
	defer server.Close()

	target, _ := url.Parse(server.URL)
	client := &http.Client{Transport: redirectTransport{target: target}}
	cached := NewCachedPriceSource(NewCoinGeckoPriceService(client, utils.NewLimiter(0)), NewMemoryRateCache(time.Hour))

	_, err := cached.RateOf(context.Background(), "BTC-EUR", valuationInstant)
	g.Expect(err).To(MatchError(ContainSubstring("rate limited")))

	rate, err := cached.RateOf(context.Background(), "BTC-EUR", valuationInstant)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rate.String()).To(Equal("29150.5"))
	g.Expect(calls.Load()).To(Equal(int32(2)))
}
