package parsers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
)

// OpenSession drains the ledger of parser once and builds the processing
// session on top of it. Accounts whose id is not a UUID (legacy vaults and
// placeholders) are skipped. Movements without a currency take the one of
// their account. A non nil store receives a snapshot of the
// drained ledger.
func OpenSession(ctx context.Context, parser Parser, store SnapshotStore, rates processors.RateProvider, workers int) (*processors.Session, error) {
	name := parser.Name()
	accounts, err := parser.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	accounts = lo.Filter(accounts, func(a models.Account, _ int) bool {
		if !isUUID(a.ID) {
			logger.L.Debug("Skipping account without UUID", "platform", name, "account", a.ID, "currency", a.Currency)
			return false
		}
		return true
	})

	var transactions []models.Transaction
	for _, account := range accounts {
		txs, err := parser.ListTransactions(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		// ledger entries of some platforms only carry the account currency implicitly
		for i := range txs {
			if txs[i].Currency == "" {
				txs[i].Currency = account.Currency
			}
		}
		transactions = append(transactions, txs...)
	}
	logger.L.Info("Ledger loaded", "platform", name, "accounts", len(accounts), "transactions", len(transactions))

	if store != nil {
		if _, offline := parser.(*SnapshotParser); !offline {
			if err := store.SaveLedger(ctx, name, accounts, transactions); err != nil {
				return nil, fmt.Errorf("failed to save %s snapshot: %w", name, err)
			}
		}
	}

	ledger := processors.NewLedger(name, accounts, transactions)
	return processors.NewSession(ledger, parser.Dialect(), rates, workers), nil
}

func isUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
