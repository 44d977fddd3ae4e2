package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
)

// CoinGecko identifies coins by slug rather than ticker.
var defaultCoinGeckoIDs = map[string]string{
	"ADA":   "cardano",
	"ALGO":  "algorand",
	"ATOM":  "cosmos",
	"AVAX":  "avalanche-2",
	"BCH":   "bitcoin-cash",
	"BTC":   "bitcoin",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"ETH":   "ethereum",
	"ETC":   "ethereum-classic",
	"LINK":  "chainlink",
	"LTC":   "litecoin",
	"MATIC": "matic-network",
	"SOL":   "solana",
	"USDC":  "usd-coin",
	"USDT":  "tether",
	"XLM":   "stellar",
	"XRP":   "ripple",
	"XTZ":   "tezos",
}

var (
	coinIDs      map[string]string
	coinIDsMu    sync.RWMutex
	coinLoadOnce sync.Once
	coinLoadErr  error
)

// InitCoinGeckoIDs merges a JSON object of ticker to CoinGecko id from
// filePath over the built-in table. An empty path keeps the defaults.
func InitCoinGeckoIDs(filePath string) error {
	coinLoadOnce.Do(func() {
		ids := make(map[string]string, len(defaultCoinGeckoIDs))
		for k, v := range defaultCoinGeckoIDs {
			ids[k] = v
		}
		if filePath != "" {
			logger.L.Info("Loading CoinGecko ids", "path", filePath)
			fileData, err := os.ReadFile(filePath)
			if err != nil {
				coinLoadErr = fmt.Errorf("failed to read coin id file '%s': %w", filePath, err)
				return
			}
			var extra map[string]string
			if err := json.Unmarshal(fileData, &extra); err != nil {
				coinLoadErr = fmt.Errorf("failed to unmarshal coin ids from '%s': %w", filePath, err)
				return
			}
			for k, v := range extra {
				ids[strings.ToUpper(k)] = v
			}
		}
		coinIDsMu.Lock()
		coinIDs = ids
		coinIDsMu.Unlock()
	})
	return coinLoadErr
}

// CoinGeckoID converts a ticker such as BTC to the CoinGecko coin id.
func CoinGeckoID(symbol string) (string, bool) {
	coinIDsMu.RLock()
	ids := coinIDs
	coinIDsMu.RUnlock()
	if ids == nil {
		ids = defaultCoinGeckoIDs
	}
	id, ok := ids[strings.ToUpper(symbol)]
	return id, ok
}
