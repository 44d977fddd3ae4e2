package parsers

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
)

// Parser is a platform client: it lists the ledger and knows which
// classification dialect its movements follow.
type Parser interface {
	processors.LedgerSource
	Dialect() processors.Dialect
}

// SnapshotStore keeps a copy of what was fetched from a platform so a
// declaration can be recomputed offline.
type SnapshotStore interface {
	SaveLedger(ctx context.Context, platform string, accounts []models.Account, transactions []models.Transaction) error
	LoadLedger(ctx context.Context, platform string) ([]models.Account, []models.Transaction, error)
	SaveTradeFee(ctx context.Context, platform, tradeRef string, fee decimal.Decimal) error
	TradeFee(ctx context.Context, platform, tradeRef string) (decimal.Decimal, bool, error)
}
