package coinbasepro

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
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/security"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/utils"
)

const (
	PlatformName = "coinbasepro"
	pageSize     = 100
)

type rawAccount struct {
	ID       string          `json:"id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type rawLedgerEntry struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	Type      string          `json:"type"`
	Details   struct {
		OrderID   string `json:"order_id"`
		TradeID   string `json:"trade_id"`
		ProductID string `json:"product_id"`
	} `json:"details"`
}

// CoinbaseProParser reads accounts and ledgers from the Coinbase Exchange
// (formerly Coinbase Pro) REST API.
type CoinbaseProParser struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	signer     security.RequestSigner
}

func NewParser(baseURL string, httpClient *http.Client, limiter *rate.Limiter, signer security.RequestSigner) *CoinbaseProParser {
	return &CoinbaseProParser{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
		signer:     signer,
	}
}

func (p *CoinbaseProParser) Name() string { return PlatformName }

func (p *CoinbaseProParser) Dialect() processors.Dialect { return processors.MatchDialect{} }

func (p *CoinbaseProParser) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var raw []rawAccount
	if _, err := p.get(ctx, "/accounts", nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to list Coinbase Exchange accounts: %w", err)
	}
	accounts := make([]models.Account, 0, len(raw))
	for _, a := range raw {
		accounts = append(accounts, models.Account{ID: a.ID, Currency: a.Currency, Balance: a.Balance})
	}
	return accounts, nil
}

// ListTransactions walks the ledger of an account page by page, following
// the CB-AFTER cursor until the history is exhausted.
func (p *CoinbaseProParser) ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	var transactions []models.Transaction
	cursor := ""
	for {
		params := url.Values{}
		params.Set("limit", fmt.Sprint(pageSize))
		if cursor != "" {
			params.Set("after", cursor)
		}
		var page []rawLedgerEntry
		header, err := p.get(ctx, "/accounts/"+url.PathEscape(accountID)+"/ledger", params, &page)
		if err != nil {
			return nil, fmt.Errorf("failed to list ledger of account %s: %w", accountID, err)
		}
		for _, e := range page {
			transactions = append(transactions, models.Transaction{
				ID:        e.ID,
				AccountID: accountID,
				Type:      e.Type,
				Amount:    e.Amount,
				CreatedAt: e.CreatedAt,
				OrderID:   e.Details.OrderID,
				TradeID:   e.Details.TradeID,
			})
			logger.L.Debug("Ledger movement", "platform", PlatformName, "account", accountID, "type", e.Type,
				"date", e.CreatedAt, "amount", e.Amount.String(), "balance", e.Balance.String())
		}
		next := header.Get("CB-AFTER")
		if len(page) < pageSize || next == "" || next == cursor {
			break
		}
		cursor = next
	}
	return transactions, nil
}

func (p *CoinbaseProParser) get(ctx context.Context, path string, params url.Values, out interface{}) (http.Header, error) {
	target := p.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "fiscal-crypt")
	if p.signer != nil {
		if err := p.signer.Sign(req, nil); err != nil {
			return nil, err
		}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, utils.ReadError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return resp.Header, nil
}
