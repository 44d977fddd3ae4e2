package processors

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

// Ledger is the read-only snapshot of one platform: its accounts as of load
// time and every movement that led there. Fee movements are kept apart from
// principal movements but both are replayed when rewinding a balance.
type Ledger struct {
	platform  string
	accounts  []models.Account
	movements map[string][]models.Transaction // principal movements by account id
	fees      []models.Transaction
}

// NewLedger builds a snapshot. Transactions may come in any order.
func NewLedger(platform string, accounts []models.Account, transactions []models.Transaction) *Ledger {
	l := &Ledger{
		platform:  platform,
		accounts:  append([]models.Account(nil), accounts...),
		movements: make(map[string][]models.Transaction),
	}
	for _, tx := range transactions {
		if tx.IsFee() {
			l.fees = append(l.fees, tx)
			continue
		}
		l.movements[tx.AccountID] = append(l.movements[tx.AccountID], tx)
	}
	return l
}

func (l *Ledger) Platform() string { return l.platform }

// Accounts returns the accounts in load order.
func (l *Ledger) Accounts() []models.Account { return l.accounts }

// Account finds the account holding currency.
func (l *Ledger) Account(currency string) (models.Account, error) {
	for _, a := range l.accounts {
		if a.Currency == currency {
			return a, nil
		}
	}
	return models.Account{}, fmt.Errorf("%w: %s on %s", ErrAccountNotFound, currency, l.platform)
}

// Movements returns the principal (non-fee) movements of an account.
func (l *Ledger) Movements(accountID string) []models.Transaction {
	return l.movements[accountID]
}

// Fees returns every fee movement of the platform.
func (l *Ledger) Fees() []models.Transaction { return l.fees }

// BalanceAt rewinds the current balance of currency to instant t by undoing
// every completed movement created at or after t. A movement stamped exactly
// at t is therefore not yet part of the balance at t.
func (l *Ledger) BalanceAt(currency string, t time.Time) (decimal.Decimal, error) {
	account, err := l.Account(currency)
	if err != nil {
		return decimal.Zero, err
	}

	balance := account.Balance
	undo := func(tx models.Transaction) {
		if tx.AccountID != account.ID || !tx.Completed() || tx.CreatedAt.Before(t) {
			return
		}
		reversed := balance.Sub(tx.Amount)
		logger.L.Debug("Reversed transaction",
			"platform", l.platform, "currency", currency, "type", tx.Type,
			"amount", tx.Amount.String(), "from", balance.String(), "to", reversed.String())
		balance = reversed
	}
	for _, tx := range l.movements[account.ID] {
		undo(tx)
	}
	for _, tx := range l.fees {
		undo(tx)
	}
	return balance, nil
}
