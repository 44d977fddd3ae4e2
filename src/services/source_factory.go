package services

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/config"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
)

// NewRateCache builds the cache selected by config.Cfg.RateCache. "none"
// returns a nil cache.
func NewRateCache(ctx context.Context) (RateCache, error) {
	cfg := config.Cfg
	switch cfg.RateCache {
	case "memory", "":
		return NewMemoryRateCache(cfg.RateCacheTTL), nil
	case "redis":
		cache := NewRedisRateCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RateCacheTTL)
		if err := cache.Ping(ctx); err != nil {
			cache.Close()
			return nil, fmt.Errorf("redis rate cache at %s unreachable: %w", cfg.RedisAddr, err)
		}
		logger.L.Info("Using redis rate cache", "addr", cfg.RedisAddr)
		return cache, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown rate cache %q", cfg.RateCache)
	}
}

// NewPriceSources builds the price sources of config.Cfg.PriceSources in
// priority order, each behind rateCache when one is given.
func NewPriceSources(httpClient *http.Client, limiter *rate.Limiter, rateCache RateCache) ([]processors.PriceSource, error) {
	cfg := config.Cfg
	sources := make([]processors.PriceSource, 0, len(cfg.PriceSources))
	for _, name := range cfg.PriceSources {
		var source processors.PriceSource
		switch name {
		case "coinbasepro":
			source = NewCoinbaseExchangePriceService(cfg.CoinbaseExchangeMarketURL, httpClient, limiter)
		case "cryptowatch":
			source = NewCryptowatchPriceService(cfg.CryptowatchAPIURL, cfg.CryptowatchAPIKey, cfg.CryptowatchExchange, httpClient, limiter)
		case "coingecko":
			source = NewCoinGeckoPriceService(httpClient, limiter)
		default:
			return nil, fmt.Errorf("unknown price source %q", name)
		}
		if rateCache != nil {
			source = NewCachedPriceSource(source, rateCache)
		}
		sources = append(sources, source)
	}
	return sources, nil
}
