package marketdata

import (
	"context"

	"fintrack/internal/portfolio"

	"go.uber.org/zap"
)

// fallbackRates is used when the rates API is unavailable and nothing is
// cached. Approximate, but a stale rate beats a failed portfolio read.
var fallbackRates = portfolio.Rates{
	"USD": 1,
	"CNY": 7.25,
	"HKD": 7.80,
}

// exchangeRateFetcher is the slice of the market-data client the provider
// needs.
type exchangeRateFetcher interface {
	GetExchangeRates(ctx context.Context) (portfolio.Rates, error)
}

// RateProvider serves the exchange-rate table with a TTL cache in front of
// the live API, falling back to the last good table and finally to hardcoded
// rates. Rates never errors: currency conversion is best-effort by contract.
type RateProvider struct {
	fetcher  exchangeRateFetcher
	cache    *Cache[portfolio.Rates]
	logger   *zap.Logger
	lastGood portfolio.Rates
}

// NewRateProvider creates a provider over the given fetcher and cache.
func NewRateProvider(fetcher exchangeRateFetcher, cache *Cache[portfolio.Rates], logger *zap.Logger) *RateProvider {
	return &RateProvider{fetcher: fetcher, cache: cache, logger: logger}
}

const ratesCacheKey = "usd-rates"

// Rates returns the current rate table.
func (p *RateProvider) Rates(ctx context.Context) portfolio.Rates {
	if rates, ok := p.cache.Get(ratesCacheKey); ok {
		return rates
	}

	rates, err := p.fetcher.GetExchangeRates(ctx)
	if err != nil {
		p.logger.Warn("Exchange rate fetch failed, using fallback", zap.Error(err))
		if p.lastGood != nil {
			return p.lastGood
		}
		return fallbackRates
	}

	p.cache.Set(ratesCacheKey, rates)
	p.lastGood = rates
	return rates
}
