package processors

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bucket. QuoteVolume is the traded value in the quote
// currency when the source reports it.
type Candle struct {
	Time        time.Time
	Low         decimal.Decimal
	High        decimal.Decimal
	Open        decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
	QuoteVolume decimal.Decimal
}

// HourBucket returns the [start, end) hour window containing t, in UTC.
func HourBucket(t time.Time) (time.Time, time.Time) {
	start := t.UTC().Truncate(time.Hour)
	return start, start.Add(time.Hour)
}

// MidpointVWAP weights the (low+high)/2 midpoint of each candle by its base
// volume. Zero total volume yields zero.
func MidpointVWAP(candles []Candle) decimal.Decimal {
	two := decimal.NewFromInt(2)
	weighted := decimal.Zero
	volume := decimal.Zero
	for _, c := range candles {
		mid := c.Low.Add(c.High).Div(two)
		weighted = weighted.Add(mid.Mul(c.Volume))
		volume = volume.Add(c.Volume)
	}
	if volume.IsZero() {
		return decimal.Zero
	}
	return weighted.Div(volume)
}

// QuoteVWAP divides the summed quote volume by the summed base volume. Zero
// total volume yields zero.
func QuoteVWAP(candles []Candle) decimal.Decimal {
	quote := decimal.Zero
	volume := decimal.Zero
	for _, c := range candles {
		quote = quote.Add(c.QuoteVolume)
		volume = volume.Add(c.Volume)
	}
	if volume.IsZero() {
		return decimal.Zero
	}
	return quote.Div(volume)
}
