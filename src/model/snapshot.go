package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

// SnapshotRepository persists fetched ledgers and trade fees in sqlite.
type SnapshotRepository struct {
	DB *sql.DB
}

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{DB: db}
}

// SaveLedger replaces the stored ledger of platform.
func (r *SnapshotRepository) SaveLedger(ctx context.Context, platform string, accounts []models.Account, transactions []models.Transaction) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_accounts WHERE platform = ?`, platform); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_transactions WHERE platform = ?`, platform); err != nil {
		return err
	}

	accountStmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_accounts (platform, id, currency, balance) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer accountStmt.Close()
	for _, a := range accounts {
		if _, err := accountStmt.ExecContext(ctx, platform, a.ID, a.Currency, a.Balance.String()); err != nil {
			return fmt.Errorf("failed to save account %s: %w", a.ID, err)
		}
	}

	txStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO ledger_transactions
			(platform, id, account_id, type, amount, currency, created_at, status, order_id, trade_id, native_amount, native_currency, trade_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer txStmt.Close()
	for _, t := range transactions {
		if _, err := txStmt.ExecContext(ctx, platform, t.ID, t.AccountID, t.Type, t.Amount.String(), t.Currency,
			t.CreatedAt.UTC().Format(time.RFC3339Nano), t.Status, t.OrderID, t.TradeID,
			t.NativeAmount.String(), t.NativeCurrency, t.TradeRef); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// LoadLedger returns the stored ledger of platform, transactions in
// chronological order.
func (r *SnapshotRepository) LoadLedger(ctx context.Context, platform string) ([]models.Account, []models.Transaction, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, currency, balance FROM ledger_accounts WHERE platform = ? ORDER BY id`, platform)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Currency, &a.Balance); err != nil {
			return nil, nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	txRows, err := r.DB.QueryContext(ctx, `
		SELECT id, account_id, type, amount, COALESCE(currency, ''), created_at, COALESCE(status, ''),
			COALESCE(order_id, ''), COALESCE(trade_id, ''), COALESCE(native_amount, '0'),
			COALESCE(native_currency, ''), COALESCE(trade_ref, '')
		FROM ledger_transactions WHERE platform = ? ORDER BY created_at, id`, platform)
	if err != nil {
		return nil, nil, err
	}
	defer txRows.Close()

	var transactions []models.Transaction
	for txRows.Next() {
		var t models.Transaction
		var createdAt string
		if err := txRows.Scan(&t.ID, &t.AccountID, &t.Type, &t.Amount, &t.Currency, &createdAt, &t.Status,
			&t.OrderID, &t.TradeID, &t.NativeAmount, &t.NativeCurrency, &t.TradeRef); err != nil {
			return nil, nil, err
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, nil, fmt.Errorf("invalid date on stored transaction %s: %w", t.ID, err)
		}
		transactions = append(transactions, t)
	}
	return accounts, transactions, txRows.Err()
}

func (r *SnapshotRepository) SaveTradeFee(ctx context.Context, platform, tradeRef string, fee decimal.Decimal) error {
	_, err := r.DB.ExecContext(ctx, `INSERT OR REPLACE INTO trade_fees (platform, trade_ref, fee) VALUES (?, ?, ?)`,
		platform, tradeRef, fee.String())
	return err
}

func (r *SnapshotRepository) TradeFee(ctx context.Context, platform, tradeRef string) (decimal.Decimal, bool, error) {
	var fee decimal.Decimal
	err := r.DB.QueryRowContext(ctx, `SELECT fee FROM trade_fees WHERE platform = ? AND trade_ref = ?`, platform, tradeRef).Scan(&fee)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return fee, true, nil
}
