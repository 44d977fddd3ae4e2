package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
)

// GetManualRate returns a rate typed in by the user for the hour bucket of at.
func GetManualRate(ctx context.Context, db *sql.DB, pair string, at time.Time) (decimal.Decimal, bool, error) {
	start, _ := processors.HourBucket(at)
	var rate decimal.Decimal
	err := db.QueryRowContext(ctx, `SELECT rate FROM manual_rates WHERE pair = ? AND hour_start = ?`,
		pair, start.Format(time.RFC3339)).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return rate, true, nil
}

// SaveManualRate stores or replaces the rate of pair for the hour bucket of at.
func SaveManualRate(ctx context.Context, db *sql.DB, pair string, at time.Time, rate decimal.Decimal) error {
	start, _ := processors.HourBucket(at)
	_, err := db.ExecContext(ctx, `
		INSERT INTO manual_rates (pair, hour_start, rate) VALUES (?, ?, ?)
		ON CONFLICT(pair, hour_start) DO UPDATE SET rate = excluded.rate`,
		pair, start.Format(time.RFC3339), rate.String())
	return err
}
