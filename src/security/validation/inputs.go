package validation

import (
	"fmt"
	"regexp"
	"time"
)

var currencyCode = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// ValidateCurrencyCode accepts upper case tickers such as EUR or BTC.
func ValidateCurrencyCode(code string) error {
	if !currencyCode.MatchString(code) {
		return fmt.Errorf("invalid currency code %q", code)
	}
	return nil
}

// ValidatePeriod requires a non-empty [start, end) window.
func ValidatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("declaration period needs both a start and an end")
	}
	if !start.Before(end) {
		return fmt.Errorf("declaration start %s must be before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}
