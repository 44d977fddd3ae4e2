package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	LogLevel     string
	LogFormat    string
	DatabasePath string

	FiatCurrency string
	Platforms    []string
	PriceSources []string

	CoinbaseProAPIURL     string
	CoinbaseProAPIKey     string
	CoinbaseProAPISecret  string
	CoinbaseProPassphrase string

	CoinbaseAPIURL        string
	CoinbaseAPIKeyName    string
	CoinbaseAPIPrivateKey string // PEM encoded, CDP API keys

	CoinbaseOAuthClientID     string
	CoinbaseOAuthClientSecret string
	CoinbaseOAuthRefreshToken string
	CoinbaseOAuthTokenURL     string

	CoinbaseExchangeMarketURL string
	CryptowatchAPIURL         string
	CryptowatchAPIKey         string
	CryptowatchExchange       string
	CoinGeckoIDsPath          string

	RateCache    string // memory, redis or none
	RateCacheTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	APIRequestsPerSecond int
	HTTPTimeout          time.Duration
	ValuationWorkers     int

	EmailServiceProvider string
	MailgunDomain        string
	MailgunPrivateAPIKey string
	SenderEmail          string
	SenderName           string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	Cfg = loadFromEnv()

	if Cfg.EmailServiceProvider == "mailgun" {
		if Cfg.MailgunDomain == "" || Cfg.MailgunPrivateAPIKey == "" {
			log.Println("WARNING: MAILGUN_DOMAIN and MAILGUN_PRIVATE_API_KEY are required to mail declarations; mails will only be logged.")
		}
	}

	log.Printf("Configuration loaded: Fiat=%s, Platforms=%v, PriceSources=%v, LogLevel=%s, DBPath=%s",
		Cfg.FiatCurrency, Cfg.Platforms, Cfg.PriceSources, Cfg.LogLevel, Cfg.DatabasePath)
}

func loadFromEnv() *AppConfig {
	return &AppConfig{
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
		DatabasePath: getEnv("DATABASE_PATH", "./fiscal-crypt.db"),

		FiatCurrency: strings.ToUpper(getEnv("FIAT_CURRENCY", "EUR")),
		Platforms:    getEnvAsSlice("PLATFORMS", []string{"coinbasepro", "coinbase"}),
		PriceSources: getEnvAsSlice("PRICE_SOURCES", []string{"coinbasepro", "cryptowatch", "coingecko"}),

		CoinbaseProAPIURL:     getEnv("COINBASE_PRO_API_URL", "https://api.exchange.coinbase.com"),
		CoinbaseProAPIKey:     getEnv("COINBASE_PRO_API_KEY", ""),
		CoinbaseProAPISecret:  getEnv("COINBASE_PRO_API_SECRET", ""),
		CoinbaseProPassphrase: getEnv("COINBASE_PRO_PASSPHRASE", ""),

		CoinbaseAPIURL:        getEnv("COINBASE_API_URL", "https://api.coinbase.com"),
		CoinbaseAPIKeyName:    getEnv("COINBASE_API_KEY_NAME", ""),
		CoinbaseAPIPrivateKey: strings.ReplaceAll(getEnv("COINBASE_API_PRIVATE_KEY", ""), `\n`, "\n"),

		CoinbaseOAuthClientID:     getEnv("COINBASE_OAUTH_CLIENT_ID", ""),
		CoinbaseOAuthClientSecret: getEnv("COINBASE_OAUTH_CLIENT_SECRET", ""),
		CoinbaseOAuthRefreshToken: getEnv("COINBASE_OAUTH_REFRESH_TOKEN", ""),
		CoinbaseOAuthTokenURL:     getEnv("COINBASE_OAUTH_TOKEN_URL", "https://login.coinbase.com/oauth2/token"),

		CoinbaseExchangeMarketURL: getEnv("COINBASE_EXCHANGE_MARKET_URL", "https://api.exchange.coinbase.com"),
		CryptowatchAPIURL:         getEnv("CRYPTOWATCH_API_URL", "https://api.cryptowat.ch"),
		CryptowatchAPIKey:         getEnv("CRYPTOWATCH_API_KEY", ""),
		CryptowatchExchange:       getEnv("CRYPTOWATCH_EXCHANGE", "kraken"),
		CoinGeckoIDsPath:          getEnv("COINGECKO_IDS_PATH", ""),

		RateCache:    strings.ToLower(getEnv("RATE_CACHE", "memory")),
		RateCacheTTL: getEnvAsDuration("RATE_CACHE_TTL", 24*time.Hour),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		APIRequestsPerSecond: getEnvAsInt("API_REQUESTS_PER_SECOND", 3),
		HTTPTimeout:          getEnvAsDuration("HTTP_TIMEOUT", 20*time.Second),
		ValuationWorkers:     getEnvAsInt("VALUATION_WORKERS", 4),

		EmailServiceProvider: strings.ToLower(getEnv("EMAIL_SERVICE_PROVIDER", "mock")),
		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),
		SenderEmail:          getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:           getEnv("SENDER_NAME", "fiscal-crypt"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsSlice reads a comma separated list, trimming blanks and dropping empty items.
func getEnvAsSlice(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
