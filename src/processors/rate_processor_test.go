package processors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRateFinder(t *testing.T) {
	at := ts("2021-06-30T12:00:00Z")
	ctx := context.Background()

	t.Run("first non-zero source wins", func(t *testing.T) {
		first := &staticSource{name: "a", rate: dec("0")}
		second := &staticSource{name: "b", rate: dec("31000.5")}
		third := &staticSource{name: "c", rate: dec("1")}
		rate, err := NewRateFinder([]PriceSource{first, second, third}, nil).RateAt(ctx, "BTC-EUR", at)
		if err != nil {
			t.Fatalf("RateAt returned error: %v", err)
		}
		if !rate.Equal(dec("31000.5")) {
			t.Errorf("Expected 31000.5, got %s", rate)
		}
		if third.calls != 0 {
			t.Errorf("Expected third source to be skipped, got %d calls", third.calls)
		}
	})

	t.Run("manual fallback when every source is empty", func(t *testing.T) {
		var asked string
		manual := func(_ context.Context, pair string, _ time.Time) (decimal.Decimal, error) {
			asked = pair
			return dec("42"), nil
		}
		rate, err := NewRateFinder([]PriceSource{&staticSource{name: "a"}}, manual).RateAt(ctx, "ETH-EUR", at)
		if err != nil {
			t.Fatalf("RateAt returned error: %v", err)
		}
		if !rate.Equal(dec("42")) || asked != "ETH-EUR" {
			t.Errorf("Expected manual rate 42 for ETH-EUR, got %s for %q", rate, asked)
		}
	})

	t.Run("no rate without fallback", func(t *testing.T) {
		_, err := NewRateFinder([]PriceSource{&staticSource{name: "a"}}, nil).RateAt(ctx, "ETH-EUR", at)
		if !errors.Is(err, ErrNoRateFound) {
			t.Fatalf("Expected ErrNoRateFound, got %v", err)
		}
	})

	t.Run("manual fallback giving zero", func(t *testing.T) {
		manual := func(context.Context, string, time.Time) (decimal.Decimal, error) { return decimal.Zero, nil }
		_, err := NewRateFinder(nil, manual).RateAt(ctx, "ETH-EUR", at)
		if !errors.Is(err, ErrNoRateFound) {
			t.Fatalf("Expected ErrNoRateFound, got %v", err)
		}
	})

	t.Run("source failure aborts", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewRateFinder([]PriceSource{&staticSource{name: "a", err: boom}}, nil).RateAt(ctx, "ETH-EUR", at)
		if !errors.Is(err, boom) || errors.Is(err, ErrNoRateFound) {
			t.Fatalf("Expected wrapped source error, got %v", err)
		}
	})
}
