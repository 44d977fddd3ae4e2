package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/security/validation"
	"github.com/ArmandBENETEAU/fiscal-crypt/src/utils"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// PlatformValue is the portfolio value of one platform.
type PlatformValue struct {
	Platform string          `json:"platform"`
	Value    decimal.Decimal `json:"value"`
}

type disposalView struct {
	Date             time.Time `json:"date"`
	Platform         string    `json:"platform"`
	CapitalGain      string    `json:"capital_gain"`
	CessionPrice     string    `json:"cession_price"`
	Fee              string    `json:"fee"`
	AcquisitionPrice string    `json:"acquisition_price"`
	GlobalValue      string    `json:"global_value"`
}

type declarationView struct {
	ID                    string               `json:"id"`
	Fiat                  string               `json:"fiat"`
	Start                 time.Time            `json:"start"`
	End                   time.Time            `json:"end"`
	Disposals             []disposalView       `json:"disposals"`
	TotalCapitalGain      string               `json:"total_capital_gain"`
	TotalAcquisitionPrice string               `json:"total_acquisition_price"`
	MissingRates          []models.MissingRate `json:"missing_rates,omitempty"`
}

func viewOf(r models.DisposalRecord, _ int) disposalView {
	return disposalView{
		Date:             r.Date.UTC(),
		Platform:         r.Platform,
		CapitalGain:      utils.FormatFiat(r.CapitalGain),
		CessionPrice:     utils.FormatFiat(r.CessionPrice),
		Fee:              utils.FormatFiat(r.Fee),
		AcquisitionPrice: utils.FormatFiat(r.AcquisitionPrice),
		GlobalValue:      utils.FormatFiat(r.GlobalValue),
	}
}

// WriteDeclaration renders decl in the requested format. Amounts are rounded
// to cents here and nowhere else.
func WriteDeclaration(w io.Writer, decl *models.Declaration, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		return writeDeclarationJSON(w, decl)
	case FormatCSV:
		return writeDeclarationCSV(w, decl)
	case FormatText, "":
		return writeDeclarationText(w, decl)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeDeclarationText(w io.Writer, decl *models.Declaration) error {
	fiat := decl.Fiat
	var b strings.Builder
	fmt.Fprintf(&b, "Capital gains declaration in %s from %s to %s\n",
		fiat, decl.Start.UTC().Format(utils.DefaultDateFormat), decl.End.UTC().Format(utils.DefaultDateFormat))
	for _, r := range decl.Records {
		fmt.Fprintf(&b, "\nSELL OPERATION\n")
		fmt.Fprintf(&b, "    Date:              %s\n", utils.DisplayDate(r.Date))
		fmt.Fprintf(&b, "    Platform:          %s\n", r.Platform)
		fmt.Fprintf(&b, "    Capital gain:      %s %s\n", utils.FormatFiat(r.CapitalGain), fiat)
		fmt.Fprintf(&b, "    Cession price:     %s %s\n", utils.FormatFiat(r.CessionPrice), fiat)
		fmt.Fprintf(&b, "    Fee:               %s %s\n", utils.FormatFiat(r.Fee), fiat)
		fmt.Fprintf(&b, "    Acquisition price: %s %s\n", utils.FormatFiat(r.AcquisitionPrice), fiat)
		fmt.Fprintf(&b, "    Global value:      %s %s\n", utils.FormatFiat(r.GlobalValue), fiat)
	}
	if len(decl.Records) == 0 {
		fmt.Fprintf(&b, "\nNo disposal in this period.\n")
	}
	fmt.Fprintf(&b, "\nTotal capital gain: %s %s\n", utils.FormatFiat(decl.TotalCapitalGain), fiat)
	fmt.Fprintf(&b, "Remaining acquisition price: %s %s\n", utils.FormatFiat(decl.TotalAcquisitionPrice), fiat)

	if len(decl.MissingRates) > 0 {
		fmt.Fprintf(&b, "\nWARNING: %d wallet valuation(s) used zero for lack of a price:\n", len(decl.MissingRates))
		for _, m := range decl.MissingRates {
			fmt.Fprintf(&b, "    %s on %s at %s (balance %s)\n", m.Pair, m.Platform, m.At.UTC().Format(time.RFC3339), m.Balance.String())
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeDeclarationJSON(w io.Writer, decl *models.Declaration) error {
	view := declarationView{
		ID:                    decl.ID,
		Fiat:                  decl.Fiat,
		Start:                 decl.Start.UTC(),
		End:                   decl.End.UTC(),
		Disposals:             lo.Map(decl.Records, viewOf),
		TotalCapitalGain:      utils.FormatFiat(decl.TotalCapitalGain),
		TotalAcquisitionPrice: utils.FormatFiat(decl.TotalAcquisitionPrice),
		MissingRates:          decl.MissingRates,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func writeDeclarationCSV(w io.Writer, decl *models.Declaration) error {
	cw := csv.NewWriter(w)
	header := []string{"date", "platform", "capital_gain", "cession_price", "fee", "acquisition_price", "global_value", "currency"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, v := range lo.Map(decl.Records, viewOf) {
		row := []string{
			v.Date.Format(time.RFC3339Nano),
			validation.SanitizeForFormulaInjection(v.Platform),
			v.CapitalGain, v.CessionPrice, v.Fee, v.AcquisitionPrice, v.GlobalValue,
			decl.Fiat,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteValuation renders the answer to "what was everything worth at t".
func WriteValuation(w io.Writer, fiat string, at time.Time, values []PlatformValue, format string) error {
	total := lo.Reduce(values, func(acc decimal.Decimal, v PlatformValue, _ int) decimal.Decimal {
		return acc.Add(v.Value)
	}, decimal.Zero)

	if strings.EqualFold(format, FormatJSON) {
		type row struct {
			Platform string `json:"platform"`
			Value    string `json:"value"`
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Fiat      string    `json:"fiat"`
			At        time.Time `json:"at"`
			Platforms []row     `json:"platforms"`
			Total     string    `json:"total"`
		}{
			Fiat: fiat,
			At:   at.UTC(),
			Platforms: lo.Map(values, func(v PlatformValue, _ int) row {
				return row{Platform: v.Platform, Value: utils.FormatFiat(v.Value)}
			}),
			Total: utils.FormatFiat(total),
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Portfolio value at %s\n", at.UTC().Format(time.RFC3339))
	for _, v := range values {
		fmt.Fprintf(&b, "    %-15s %s %s\n", v.Platform+":", utils.FormatFiat(v.Value), fiat)
	}
	fmt.Fprintf(&b, "    %-15s %s %s\n", "Total:", utils.FormatFiat(total), fiat)
	_, err := io.WriteString(w, b.String())
	return err
}
