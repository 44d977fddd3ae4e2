package services

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/logger"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/model"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/processors"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/security/validation"
)

// NewManualRateFunc answers from the rates typed in previously and otherwise
// asks on in/out, storing every answer. A nil in never prompts.
func NewManualRateFunc(db *sql.DB, in io.Reader, out io.Writer) processors.ManualRateFunc {
	var scanner *bufio.Scanner
	if in != nil {
		scanner = bufio.NewScanner(in)
	}
	return func(ctx context.Context, pair string, t time.Time) (decimal.Decimal, error) {
		if db != nil {
			rate, found, err := model.GetManualRate(ctx, db, pair, t)
			if err != nil {
				return decimal.Zero, fmt.Errorf("failed to read manual rate of %s: %w", pair, err)
			}
			if found {
				return rate, nil
			}
		}
		if scanner == nil {
			return decimal.Zero, nil
		}

		for {
			fmt.Fprintf(out, "No rate found for %s at %s UTC. Enter it manually (empty to value at zero): ",
				pair, t.UTC().Format("2006-01-02 15:04"))
			if !scanner.Scan() {
				return decimal.Zero, scanner.Err()
			}
			answer := strings.TrimSpace(validation.StripUnprintable(scanner.Text()))
			if answer == "" {
				return decimal.Zero, nil
			}
			rate, err := decimal.NewFromString(strings.ReplaceAll(answer, ",", "."))
			if err != nil || rate.IsNegative() {
				fmt.Fprintln(out, "Invalid rate, expected a positive decimal number.")
				continue
			}
			if db != nil && rate.IsPositive() {
				if err := model.SaveManualRate(ctx, db, pair, t, rate); err != nil {
					logger.L.Warn("Failed to store manual rate", "pair", pair, "error", err)
				}
			}
			logger.L.Info("Manual rate entered", "pair", pair, "at", t, "rate", rate.String())
			return rate, nil
		}
	}
}
