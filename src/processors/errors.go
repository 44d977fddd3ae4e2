package processors

import "errors"

var (
	ErrAccountNotFound           = errors.New("no account found for this currency")
	ErrCurrencyMismatch          = errors.New("trade currency does not match the requested fiat currency")
	ErrInsufficientValuationData = errors.New("portfolio value is zero at disposal time")
	ErrNoRateFound               = errors.New("no rate found for pair")
	ErrUnsupportedTradeKind      = errors.New("unsupported trade kind")
)
