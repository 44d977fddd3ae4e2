package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DisposalRecord details the capital gain of one sell.
type DisposalRecord struct {
	Date             time.Time       `json:"date"`
	Platform         string          `json:"platform"`
	CessionPrice     decimal.Decimal `json:"cession_price"`
	Fee              decimal.Decimal `json:"fee"`
	AcquisitionPrice decimal.Decimal `json:"acquisition_price"` // total acquisition price before the sell
	GlobalValue      decimal.Decimal `json:"global_value"`      // portfolio value just before the sell
	CapitalGain      decimal.Decimal `json:"capital_gain"`
}

// Declaration is the outcome of a capital gains run over [Start, End).
type Declaration struct {
	ID                    string           `json:"id"`
	Fiat                  string           `json:"fiat"`
	Start                 time.Time        `json:"start"`
	End                   time.Time        `json:"end"`
	Records               []DisposalRecord `json:"records"`
	TotalCapitalGain      decimal.Decimal  `json:"total_capital_gain"`
	TotalAcquisitionPrice decimal.Decimal  `json:"total_acquisition_price"`
	MissingRates          []MissingRate    `json:"missing_rates,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
}
