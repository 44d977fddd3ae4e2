package processors

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/ArmandBENETEAU/fiscal-crypt/src/models"
)

var (
	yearStart = ts("2021-01-01T00:00:00Z")
	yearEnd   = ts("2022-01-01T00:00:00Z")
)

func buy(date, amount string) models.Trade {
	return models.Trade{Kind: models.TradeBuy, Date: ts(date), Currency: "EUR", Amount: dec(amount), Fee: dec("0")}
}

func sell(date, amount, fee string) models.Trade {
	return models.Trade{Kind: models.TradeSell, Date: ts(date), Currency: "EUR", Amount: dec(amount), Fee: dec(fee)}
}

func TestDeclarationForProrata(t *testing.T) {
	g := NewGomegaWithT(t)
	platform := &fakePlatform{
		name:  "coinbasepro",
		buys:  []models.Trade{buy("2021-02-01T10:00:00Z", "1000")},
		sells: []models.Trade{sell("2021-05-01T10:00:00Z", "100", "0.5")},
		value: constant("2000"),
	}

	decl, err := NewCapitalGainsProcessor([]Platform{platform}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(decl.ID).NotTo(BeEmpty())
	g.Expect(decl.Records).To(HaveLen(1))

	record := decl.Records[0]
	g.Expect(record.CapitalGain.String()).To(Equal("50"))
	g.Expect(record.CessionPrice.String()).To(Equal("100"))
	g.Expect(record.AcquisitionPrice.String()).To(Equal("1000"))
	g.Expect(record.GlobalValue.String()).To(Equal("2000"))
	g.Expect(record.Fee.String()).To(Equal("0.5"))
	g.Expect(record.Platform).To(Equal("coinbasepro"))
	g.Expect(decl.TotalCapitalGain.String()).To(Equal("50"))
	g.Expect(decl.TotalAcquisitionPrice.String()).To(Equal("950"))

	// valued one millisecond before the sell
	g.Expect(platform.valued).To(ConsistOf(ts("2021-05-01T10:00:00Z").Add(-time.Millisecond)))
}

func TestDeclarationForKeepsShareUnrounded(t *testing.T) {
	g := NewGomegaWithT(t)
	platform := &fakePlatform{
		name:  "coinbasepro",
		buys:  []models.Trade{buy("2021-02-01T10:00:00Z", "1000")},
		sells: []models.Trade{sell("2021-05-01T10:00:00Z", "100", "0")},
		value: constant("3000"),
	}

	decl, err := NewCapitalGainsProcessor([]Platform{platform}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(decl.Records[0].CapitalGain.String()).To(Equal("66.6666666666666666666666666667"))
	g.Expect(decl.TotalAcquisitionPrice.String()).To(Equal("966.6666666666666666666666666667"))
}

func TestDeclarationForBuysOnly(t *testing.T) {
	g := NewGomegaWithT(t)
	platform := &fakePlatform{
		name: "coinbase",
		buys: []models.Trade{buy("2021-02-01T10:00:00Z", "10.1"), buy("2021-03-01T10:00:00Z", "20.2")},
	}

	decl, err := NewCapitalGainsProcessor([]Platform{platform}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(decl.Records).To(BeEmpty())
	g.Expect(decl.TotalCapitalGain.IsZero()).To(BeTrue())
	g.Expect(decl.TotalAcquisitionPrice.String()).To(Equal("30.3"))
	g.Expect(platform.valued).To(BeEmpty())
}

func TestDeclarationForZeroPortfolioIsFatal(t *testing.T) {
	g := NewGomegaWithT(t)
	platform := &fakePlatform{
		name:  "coinbasepro",
		buys:  []models.Trade{buy("2021-02-01T10:00:00Z", "1000")},
		sells: []models.Trade{sell("2021-05-01T10:00:00Z", "100", "0")},
		value: constant("0"),
	}

	_, err := NewCapitalGainsProcessor([]Platform{platform}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).To(MatchError(ErrInsufficientValuationData))
}

func TestDeclarationForMergesPlatformsStably(t *testing.T) {
	g := NewGomegaWithT(t)
	// same instant on two platforms: buys are collected before sells, so the
	// buy feeds the acquisition price before the sell is processed
	sameInstant := "2021-04-01T08:00:00Z"
	first := &fakePlatform{
		name:  "coinbasepro",
		sells: []models.Trade{sell(sameInstant, "100", "0")},
		value: constant("1000"),
	}
	second := &fakePlatform{
		name:  "coinbase",
		buys:  []models.Trade{buy(sameInstant, "1000")},
		value: constant("1000"),
	}

	decl, err := NewCapitalGainsProcessor([]Platform{first, second}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(decl.Records).To(HaveLen(1))
	// global value is the sum over both platforms
	g.Expect(decl.Records[0].GlobalValue.String()).To(Equal("2000"))
	g.Expect(decl.Records[0].CapitalGain.String()).To(Equal("50"))
	g.Expect(decl.Records[0].Platform).To(Equal("coinbasepro"))
}

func TestDeclarationForReportsFromStartOnly(t *testing.T) {
	g := NewGomegaWithT(t)
	values := map[int64]string{
		ts("2020-06-01T00:00:00Z").Add(-time.Millisecond).UnixMilli(): "2000",
		ts("2021-06-01T00:00:00Z").Add(-time.Millisecond).UnixMilli(): "1900",
	}
	platform := &fakePlatform{
		name:  "coinbasepro",
		buys:  []models.Trade{buy("2020-01-01T00:00:00Z", "1000")},
		sells: []models.Trade{sell("2020-06-01T00:00:00Z", "100", "0"), sell("2021-06-01T00:00:00Z", "190", "0")},
		value: func(at time.Time) decimal.Decimal { return dec(values[at.UnixMilli()]) },
	}

	decl, err := NewCapitalGainsProcessor([]Platform{platform}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(decl.Records).To(HaveLen(1))
	g.Expect(decl.Records[0].AcquisitionPrice.String()).To(Equal("950"))
	g.Expect(decl.TotalCapitalGain.String()).To(Equal("95"))
	g.Expect(decl.TotalAcquisitionPrice.String()).To(Equal("855"))
}

func TestDeclarationForIgnoresTradesAfterEnd(t *testing.T) {
	g := NewGomegaWithT(t)
	platform := &fakePlatform{
		name:  "coinbasepro",
		buys:  []models.Trade{buy("2021-02-01T00:00:00Z", "500"), buy("2022-01-01T00:00:00Z", "700")},
		sells: []models.Trade{sell("2022-02-01T00:00:00Z", "100", "0")},
		value: constant("1000"),
	}

	decl, err := NewCapitalGainsProcessor([]Platform{platform}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(decl.Records).To(BeEmpty())
	g.Expect(decl.TotalAcquisitionPrice.String()).To(Equal("500"))
}

func TestDeclarationForCollectsMissingRates(t *testing.T) {
	g := NewGomegaWithT(t)
	platform := &fakePlatform{
		name:    "coinbase",
		missing: []models.MissingRate{
			{Platform: "coinbase", Pair: "ABC-EUR", At: ts("2020-11-02T09:59:59.999Z")},
			{Platform: "coinbase", Pair: "XYZ-EUR", At: yearStart.Add(-time.Millisecond)},
		},
	}

	decl, err := NewCapitalGainsProcessor([]Platform{platform}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).NotTo(HaveOccurred())
	// only misses met while valuing sells of the period are reported
	g.Expect(decl.MissingRates).To(HaveLen(1))
	g.Expect(decl.MissingRates[0].Pair).To(Equal("XYZ-EUR"))
}

func TestDeclarationForPropagatesSourceErrors(t *testing.T) {
	g := NewGomegaWithT(t)
	boom := errors.New("pagination failed")
	platform := &fakePlatform{name: "coinbase", listErr: boom}

	_, err := NewCapitalGainsProcessor([]Platform{platform}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).To(MatchError(boom))
}

// End to end over a real ledger: a buy of 1 BTC for 1000 EUR, then a sell
// of half of it for 600 EUR while BTC is worth 1200 EUR.
func TestDeclarationForSession(t *testing.T) {
	g := NewGomegaWithT(t)
	ledger := NewLedger("coinbasepro", []models.Account{
		{ID: "eur", Currency: "EUR", Balance: dec("1600")},
		{ID: "btc", Currency: "BTC", Balance: dec("0.5")},
	}, []models.Transaction{
		{ID: "1", AccountID: "eur", Type: models.TypeTransfer, Amount: dec("2000"), CreatedAt: ts("2021-01-01T00:00:00Z")},
		{ID: "2", AccountID: "eur", Type: models.TypeMatch, Amount: dec("-1000"), CreatedAt: ts("2021-02-01T00:00:00Z"), OrderID: "o1", TradeID: "1"},
		{ID: "3", AccountID: "btc", Type: models.TypeMatch, Amount: dec("1"), CreatedAt: ts("2021-02-01T00:00:00Z"), OrderID: "o1", TradeID: "1"},
		{ID: "4", AccountID: "eur", Type: models.TypeMatch, Amount: dec("600"), CreatedAt: ts("2021-03-01T00:00:00Z"), OrderID: "o2", TradeID: "2"},
		{ID: "5", AccountID: "btc", Type: models.TypeMatch, Amount: dec("-0.5"), CreatedAt: ts("2021-03-01T00:00:00Z"), OrderID: "o2", TradeID: "2"},
	})
	rates := &fakeRates{rates: map[string]decimal.Decimal{"BTC-EUR": dec("1200")}}
	session := NewSession(ledger, MatchDialect{}, rates, 2)

	decl, err := NewCapitalGainsProcessor([]Platform{session}).DeclarationFor(context.Background(), "EUR", yearStart, yearEnd)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(decl.Records).To(HaveLen(1))
	g.Expect(decl.Records[0].GlobalValue.String()).To(Equal("1200"))
	g.Expect(decl.Records[0].CapitalGain.String()).To(Equal("100"))
	g.Expect(decl.TotalAcquisitionPrice.String()).To(Equal("500"))
	g.Expect(rates.calls).To(Equal([]string{"BTC-EUR"}))
}
