package services

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

type countingSource struct {
	calls int
	rate  decimal.Decimal
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) RateOf(context.Context, string, time.Time) (decimal.Decimal, error) {
	s.calls++
	return s.rate, nil
}

func TestMemoryRateCache(t *testing.T) {
	g := NewGomegaWithT(t)
	c := NewMemoryRateCache(time.Minute)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "k")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(found).To(BeFalse())

	g.Expect(c.Set(ctx, "k", decimal.RequireFromString("1.25"))).To(Succeed())
	rate, found, err := c.Get(ctx, "k")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(found).To(BeTrue())
	g.Expect(rate.String()).To(Equal("1.25"))
}

func TestCachedPriceSourceCachesClosedHoursOnly(t *testing.T) {
	g := NewGomegaWithT(t)
	inner := &countingSource{rate: decimal.RequireFromString("100")}
	cached := NewCachedPriceSource(inner, NewMemoryRateCache(time.Hour))
	now := time.Date(2021, 6, 30, 12, 30, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }
	ctx := context.Background()

	// two instants of the same closed hour share one lookup
	for _, at := range []time.Time{now.Add(-2 * time.Hour), now.Add(-time.Hour - 20*time.Minute)} {
		rate, err := cached.RateOf(ctx, "BTC-EUR", at)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(rate.String()).To(Equal("100"))
	}
	g.Expect(inner.calls).To(Equal(1))

	// the running hour is always fetched
	for i := 0; i < 2; i++ {
		_, err := cached.RateOf(ctx, "BTC-EUR", now)
		g.Expect(err).NotTo(HaveOccurred())
	}
	g.Expect(inner.calls).To(Equal(3))
	g.Expect(cached.Name()).To(Equal("counting"))
}

func TestRedisRateCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	g := NewGomegaWithT(t)
	c := NewRedisRateCache(addr, os.Getenv("REDIS_PASSWORD"), 0, time.Minute)
	defer c.Close()
	ctx := context.Background()
	g.Expect(c.Ping(ctx)).To(Succeed())

	key := "rate:test:BTC-EUR:" + time.Now().Format("150405.000000")
	_, found, err := c.Get(ctx, key)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(found).To(BeFalse())

	g.Expect(c.Set(ctx, key, decimal.RequireFromString("31000.12345678"))).To(Succeed())
	rate, found, err := c.Get(ctx, key)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(found).To(BeTrue())
	g.Expect(rate.String()).To(Equal("31000.12345678"))
}
