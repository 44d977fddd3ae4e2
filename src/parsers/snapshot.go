package parsers

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/parsers/coinbase"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
)

// PersistentFeeFetcher remembers every trade fee it resolved. Without a
// next fetcher only stored fees can be served.
type PersistentFeeFetcher struct {
	platform string
	store    SnapshotStore
	next     processors.TradeDetailFetcher
}

func NewPersistentFeeFetcher(platform string, store SnapshotStore, next processors.TradeDetailFetcher) *PersistentFeeFetcher {
	return &PersistentFeeFetcher{platform: platform, store: store, next: next}
}

func (f *PersistentFeeFetcher) FetchTradeFee(ctx context.Context, tx models.Transaction) (decimal.Decimal, error) {
	if tx.TradeRef == "" {
		return decimal.Zero, nil
	}
	fee, ok, err := f.store.TradeFee(ctx, f.platform, tx.TradeRef)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read stored fee of %s: %w", tx.TradeRef, err)
	}
	if ok {
		return fee, nil
	}
	if f.next == nil {
		return decimal.Zero, fmt.Errorf("fee of trade %s is not in the %s snapshot", tx.TradeRef, f.platform)
	}

	fee, err = f.next.FetchTradeFee(ctx, tx)
	if err != nil {
		return decimal.Zero, err
	}
	if err := f.store.SaveTradeFee(ctx, f.platform, tx.TradeRef, fee); err != nil {
		logger.L.Warn("Failed to store trade fee", "platform", f.platform, "trade", tx.TradeRef, "error", err)
	}
	return fee, nil
}

// feeCachingParser routes the tagged dialect through a PersistentFeeFetcher.
type feeCachingParser struct {
	Parser
	fetcher processors.TradeDetailFetcher
}

func (p *feeCachingParser) Dialect() processors.Dialect {
	return processors.TaggedDialect{Fetcher: p.fetcher}
}

// SnapshotParser serves a platform ledger from the snapshot store.
type SnapshotParser struct {
	platform string
	store    SnapshotStore

	once         sync.Once
	accounts     []models.Account
	transactions []models.Transaction
	err          error
}

func NewSnapshotParser(platform string, store SnapshotStore) *SnapshotParser {
	return &SnapshotParser{platform: platform, store: store}
}

func (p *SnapshotParser) Name() string { return p.platform }

func (p *SnapshotParser) Dialect() processors.Dialect {
	if p.platform == coinbase.PlatformName {
		return processors.TaggedDialect{Fetcher: NewPersistentFeeFetcher(p.platform, p.store, nil)}
	}
	return processors.MatchDialect{}
}

func (p *SnapshotParser) load(ctx context.Context) error {
	p.once.Do(func() {
		p.accounts, p.transactions, p.err = p.store.LoadLedger(ctx, p.platform)
		if p.err == nil && len(p.accounts) == 0 {
			p.err = fmt.Errorf("no snapshot stored for %s, run once without --offline", p.platform)
		}
	})
	return p.err
}

func (p *SnapshotParser) ListAccounts(ctx context.Context) ([]models.Account, error) {
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return p.accounts, nil
}

func (p *SnapshotParser) ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	if err := p.load(ctx); err != nil {
		return nil, err
	}
	return lo.Filter(p.transactions, func(tx models.Transaction, _ int) bool {
		return tx.AccountID == accountID
	}), nil
}
