package parsers

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/config"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/parsers/coinbase"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/parsers/coinbasepro"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/security"
)

// Deps are the collaborators shared by every platform client.
type Deps struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Store      SnapshotStore
	Offline    bool
}

// GetParser builds the client of source from config.Cfg. Offline mode
// replays the last saved snapshot instead of calling the platform.
func GetParser(ctx context.Context, source string, deps Deps) (Parser, error) {
	if deps.Offline {
		if deps.Store == nil {
			return nil, fmt.Errorf("offline mode for %s needs a snapshot store", source)
		}
		return NewSnapshotParser(source, deps.Store), nil
	}

	cfg := config.Cfg
	switch source {
	case coinbasepro.PlatformName:
		signer, err := security.NewExchangeSigner(cfg.CoinbaseProAPIKey, cfg.CoinbaseProAPISecret, cfg.CoinbaseProPassphrase)
		if err != nil {
			return nil, fmt.Errorf("invalid Coinbase Exchange credentials: %w", err)
		}
		return coinbasepro.NewParser(cfg.CoinbaseProAPIURL, deps.HTTPClient, deps.Limiter, signer), nil
	case coinbase.PlatformName:
		var p *coinbase.CoinbaseParser
		if cfg.CoinbaseAPIKeyName != "" {
			signer, err := security.NewCDPSigner(cfg.CoinbaseAPIKeyName, cfg.CoinbaseAPIPrivateKey)
			if err != nil {
				return nil, fmt.Errorf("invalid Coinbase API key: %w", err)
			}
			p = coinbase.NewParser(cfg.CoinbaseAPIURL, deps.HTTPClient, deps.Limiter, signer)
		} else {
			logger.L.Info("No Coinbase API key configured, using OAuth2 refresh token")
			client := coinbase.NewOAuthClient(ctx, deps.HTTPClient, cfg.CoinbaseOAuthClientID, cfg.CoinbaseOAuthClientSecret,
				cfg.CoinbaseOAuthTokenURL, cfg.CoinbaseOAuthRefreshToken)
			p = coinbase.NewParser(cfg.CoinbaseAPIURL, client, deps.Limiter, nil)
		}
		if deps.Store == nil {
			return p, nil
		}
		return &feeCachingParser{Parser: p, fetcher: NewPersistentFeeFetcher(p.Name(), deps.Store, p)}, nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
