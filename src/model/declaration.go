package model

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

// SaveDeclaration stores a computed declaration with its disposal records.
func SaveDeclaration(ctx context.Context, db *sql.DB, decl *models.Declaration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO declarations (id, fiat, period_start, period_end, total_capital_gain, total_acquisition_price, missing_rates, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		decl.ID, decl.Fiat, formatTime(decl.Start), formatTime(decl.End),
		decl.TotalCapitalGain.String(), decl.TotalAcquisitionPrice.String(), len(decl.MissingRates), formatTime(decl.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save declaration %s: %w", decl.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO disposals (declaration_id, seq, date, platform, cession_price, fee, acquisition_price, global_value, capital_gain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range decl.Records {
		if _, err := stmt.ExecContext(ctx, decl.ID, i, formatTime(r.Date), r.Platform, r.CessionPrice.String(), r.Fee.String(),
			r.AcquisitionPrice.String(), r.GlobalValue.String(), r.CapitalGain.String()); err != nil {
			return fmt.Errorf("failed to save disposal %d of %s: %w", i, decl.ID, err)
		}
	}
	return tx.Commit()
}

// ListDeclarations returns the stored declarations of fiat, newest first.
// Missing rate details are not kept, only their count is.
func ListDeclarations(ctx context.Context, db *sql.DB, fiat string) ([]models.Declaration, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, fiat, period_start, period_end, total_capital_gain, total_acquisition_price, created_at
		FROM declarations WHERE fiat = ? ORDER BY created_at DESC, id`, fiat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var declarations []models.Declaration
	for rows.Next() {
		var d models.Declaration
		var start, end, created string
		if err := rows.Scan(&d.ID, &d.Fiat, &start, &end, &d.TotalCapitalGain, &d.TotalAcquisitionPrice, &created); err != nil {
			return nil, err
		}
		if d.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if d.End, err = parseTime(end); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		declarations = append(declarations, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range declarations {
		if declarations[i].Records, err = listDisposals(ctx, db, declarations[i].ID); err != nil {
			return nil, err
		}
	}
	return declarations, nil
}

func listDisposals(ctx context.Context, db *sql.DB, declarationID string) ([]models.DisposalRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date, platform, cession_price, fee, acquisition_price, global_value, capital_gain
		FROM disposals WHERE declaration_id = ? ORDER BY seq`, declarationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.DisposalRecord
	for rows.Next() {
		var r models.DisposalRecord
		var date string
		if err := rows.Scan(&date, &r.Platform, &r.CessionPrice, &r.Fee, &r.AcquisitionPrice, &r.GlobalValue, &r.CapitalGain); err != nil {
			return nil, err
		}
		if r.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }
