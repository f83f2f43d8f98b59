package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"fintrack/internal/portfolio"
)

type stubRateFetcher struct {
	rates portfolio.Rates
	err   error
	calls int
}

func (s *stubRateFetcher) GetExchangeRates(ctx context.Context) (portfolio.Rates, error) {
	s.calls++
	return s.rates, s.err
}

func TestRateProviderCachesTable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	fetcher := &stubRateFetcher{rates: portfolio.Rates{"USD": 1, "CNY": 7.2}}
	p := NewRateProvider(fetcher, NewCache[portfolio.Rates](30*time.Minute, clock), zap.NewNop())

	assert.Equal(t, 7.2, p.Rates(context.Background())["CNY"])
	assert.Equal(t, 7.2, p.Rates(context.Background())["CNY"])
	assert.Equal(t, 1, fetcher.calls)

	// After the TTL the table is re-fetched.
	now = now.Add(31 * time.Minute)
	p.Rates(context.Background())
	assert.Equal(t, 2, fetcher.calls)
}

func TestRateProviderFallsBackToLastGood(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	fetcher := &stubRateFetcher{rates: portfolio.Rates{"USD": 1, "CNY": 7.5}}
	p := NewRateProvider(fetcher, NewCache[portfolio.Rates](time.Minute, clock), zap.NewNop())

	p.Rates(context.Background())

	now = now.Add(2 * time.Minute)
	fetcher.err = errors.New("upstream down")
	rates := p.Rates(context.Background())
	assert.Equal(t, 7.5, rates["CNY"])
}

func TestRateProviderHardcodedFallback(t *testing.T) {
	fetcher := &stubRateFetcher{err: errors.New("upstream down")}
	p := NewRateProvider(fetcher, NewCache[portfolio.Rates](time.Minute, nil), zap.NewNop())

	rates := p.Rates(context.Background())
	assert.Equal(t, 1.0, rates["USD"])
	assert.NotZero(t, rates["CNY"])
	assert.NotZero(t, rates["HKD"])
}
