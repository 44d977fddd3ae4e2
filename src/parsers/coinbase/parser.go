package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/security"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/utils"
)

const (
	PlatformName = "coinbase"
	apiVersion   = "2024-01-01"
	pageSize     = 100
)

type money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type pagination struct {
	NextURI string `json:"next_uri"`
}

type rawAccount struct {
	ID      string `json:"id"`
	Balance money  `json:"balance"`
}

type rawResource struct {
	ID           string `json:"id"`
	ResourcePath string `json:"resource_path"`
}

type rawTransaction struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	Status       string       `json:"status"`
	Amount       money        `json:"amount"`
	NativeAmount money        `json:"native_amount"`
	CreatedAt    time.Time    `json:"created_at"`
	ResourcePath string       `json:"resource_path"`
	Buy          *rawResource `json:"buy"`
	Sell         *rawResource `json:"sell"`
}

type rawTrade struct {
	ID   string  `json:"id"`
	Fee  *money  `json:"fee"`
	Fees []struct {
		Amount money `json:"amount"`
	} `json:"fees"`
}

// CoinbaseParser reads wallets and transactions from the Coinbase App v2 API.
type CoinbaseParser struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	signer     security.RequestSigner
}

// NewParser authenticates either with a CDP key signer or, when signer is
// nil, through httpClient (see NewOAuthClient).
func NewParser(baseURL string, httpClient *http.Client, limiter *rate.Limiter, signer security.RequestSigner) *CoinbaseParser {
	return &CoinbaseParser{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
		signer:     signer,
	}
}

// NewOAuthClient returns a client refreshing its access token from a
// long-lived refresh token.
func NewOAuthClient(ctx context.Context, base *http.Client, clientID, clientSecret, tokenURL, refreshToken string) *http.Client {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		Scopes:       []string{"wallet:accounts:read", "wallet:transactions:read", "wallet:buys:read", "wallet:sells:read"},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return conf.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

func (p *CoinbaseParser) Name() string { return PlatformName }

func (p *CoinbaseParser) Dialect() processors.Dialect {
	return processors.TaggedDialect{Fetcher: p}
}

func (p *CoinbaseParser) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := p.walk(ctx, fmt.Sprintf("/v2/accounts?limit=%d", pageSize), func(data json.RawMessage) error {
		var page []rawAccount
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		for _, a := range page {
			accounts = append(accounts, models.Account{ID: a.ID, Currency: a.Balance.Currency, Balance: a.Balance.Amount})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list Coinbase accounts: %w", err)
	}
	return accounts, nil
}

func (p *CoinbaseParser) ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	var transactions []models.Transaction
	first := fmt.Sprintf("/v2/accounts/%s/transactions?limit=%d", url.PathEscape(accountID), pageSize)
	err := p.walk(ctx, first, func(data json.RawMessage) error {
		var page []rawTransaction
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		for _, t := range page {
			owner := AccountIDFromPath(t.ResourcePath)
			if owner == "" {
				owner = accountID
			}
			tx := models.Transaction{
				ID:             t.ID,
				AccountID:      owner,
				Type:           t.Type,
				Amount:         t.Amount.Amount,
				Currency:       t.Amount.Currency,
				CreatedAt:      t.CreatedAt,
				Status:         t.Status,
				NativeAmount:   t.NativeAmount.Amount,
				NativeCurrency: t.NativeAmount.Currency,
			}
			switch {
			case t.Buy != nil:
				tx.TradeRef = t.Buy.ID
			case t.Sell != nil:
				tx.TradeRef = t.Sell.ID
			}
			logger.L.Debug("Wallet transaction", "platform", PlatformName, "account", owner, "type", t.Type, "status", t.Status,
				"date", t.CreatedAt, "amount", t.Amount.Amount.String(), "native", t.NativeAmount.Amount.String())
			transactions = append(transactions, tx)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions of account %s: %w", accountID, err)
	}
	return transactions, nil
}

// FetchTradeFee loads the full buy or sell object behind a transaction.
func (p *CoinbaseParser) FetchTradeFee(ctx context.Context, tx models.Transaction) (decimal.Decimal, error) {
	var kind string
	switch tx.Type {
	case models.TypeBuy:
		kind = "buys"
	case models.TypeSell:
		kind = "sells"
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", processors.ErrUnsupportedTradeKind, tx.Type)
	}
	if tx.TradeRef == "" {
		return decimal.Zero, nil
	}

	var envelope struct {
		Data rawTrade `json:"data"`
	}
	path := fmt.Sprintf("/v2/accounts/%s/%s/%s", url.PathEscape(tx.AccountID), kind, url.PathEscape(tx.TradeRef))
	if err := p.get(ctx, path, &envelope); err != nil {
		return decimal.Zero, err
	}

	fee := decimal.Zero
	if envelope.Data.Fee != nil {
		fee = envelope.Data.Fee.Amount.Abs()
	}
	for _, f := range envelope.Data.Fees {
		fee = fee.Add(f.Amount.Amount.Abs())
	}
	return fee, nil
}

// AccountIDFromPath extracts the account id of /v2/accounts/<id>/...
func AccountIDFromPath(path string) string {
	items := strings.Split(path, "/")
	if len(items) > 3 && items[2] == "accounts" {
		return items[3]
	}
	return ""
}

// walk follows pagination.next_uri until the last page.
func (p *CoinbaseParser) walk(ctx context.Context, uri string, handle func(json.RawMessage) error) error {
	for uri != "" {
		var envelope struct {
			Pagination pagination      `json:"pagination"`
			Data       json.RawMessage `json:"data"`
		}
		if err := p.get(ctx, uri, &envelope); err != nil {
			return err
		}
		if err := handle(envelope.Data); err != nil {
			return fmt.Errorf("failed to decode %s: %w", uri, err)
		}
		uri = envelope.Pagination.NextURI
	}
	return nil
}

func (p *CoinbaseParser) get(ctx context.Context, uri string, out interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+uri, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("CB-VERSION", apiVersion)
	if p.signer != nil {
		if err := p.signer.Sign(req, nil); err != nil {
			return err
		}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return utils.ReadError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
