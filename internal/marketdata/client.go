package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/portfolio"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultCryptoBaseURL = "https://api.coingecko.com/api/v3"
	defaultStockBaseURL  = "https://query1.finance.yahoo.com"
	defaultRatesBaseURL  = "https://open.er-api.com/v6"
)

// PricePoint is one day's closing price for a symbol.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// ClientInterface defines the external market-data surface the services
// depend on.
type ClientInterface interface {
	GetCryptoPrices(ctx context.Context, ids []string) (map[string]float64, error)
	GetCryptoHistory(ctx context.Context, id string, from, to time.Time) ([]PricePoint, error)
	GetStockPrice(ctx context.Context, symbol string) (float64, error)
	GetStockHistory(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error)
	GetExchangeRates(ctx context.Context) (portfolio.Rates, error)
}

// Client fetches spot prices, daily history and exchange rates from the
// public crypto/stock/rates APIs. All requests share one rate limiter and a
// per-request timeout so a slow upstream degrades instead of blocking.
type Client struct {
	crypto  *resty.Client
	stocks  *resty.Client
	rates   *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a market-data client from configuration.
func NewClient(cfg *config.MarketData, logger *zap.Logger) *Client {
	cryptoURL := cfg.CryptoBaseURL
	if cryptoURL == "" {
		cryptoURL = defaultCryptoBaseURL
	}
	stockURL := cfg.StockBaseURL
	if stockURL == "" {
		stockURL = defaultStockBaseURL
	}
	ratesURL := cfg.RatesBaseURL
	if ratesURL == "" {
		ratesURL = defaultRatesBaseURL
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	newResty := func(baseURL string) *resty.Client {
		return resty.New().SetBaseURL(baseURL).SetTimeout(timeout)
	}

	return &Client{
		crypto:  newResty(cryptoURL),
		stocks:  newResty(stockURL),
		rates:   newResty(ratesURL),
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
	}
}

// doRequest executes a request with rate limiting and retry on throttling or
// server errors.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.StatusCode() != 0 {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			// Network or other client-side errors.
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetCryptoPrices fetches current USD spot prices for a set of coin ids.
func (c *Client) GetCryptoPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	var result map[string]map[string]float64

	req := c.crypto.R().
		SetQueryParam("ids", joinIDs(ids)).
		SetQueryParam("vs_currencies", "usd").
		SetResult(&result)

	if _, err := c.doRequest(ctx, "GET", "/simple/price", req); err != nil {
		return nil, fmt.Errorf("failed to get crypto prices: %w", err)
	}

	prices := make(map[string]float64, len(result))
	for id, quote := range result {
		if usd, ok := quote["usd"]; ok {
			prices[id] = usd
		}
	}
	return prices, nil
}

// GetCryptoHistory fetches a coin's daily USD price series over a date range.
// Intraday points are collapsed to the first sample per UTC day.
func (c *Client) GetCryptoHistory(ctx context.Context, id string, from, to time.Time) ([]PricePoint, error) {
	type marketChart struct {
		Prices [][]float64 `json:"prices"`
	}
	var result marketChart

	req := c.crypto.R().
		SetQueryParam("vs_currency", "usd").
		SetQueryParam("from", strconv.FormatInt(from.Unix(), 10)).
		SetQueryParam("to", strconv.FormatInt(to.Unix(), 10)).
		SetResult(&result)

	if _, err := c.doRequest(ctx, "GET", "/coins/"+id+"/market_chart/range", req); err != nil {
		return nil, fmt.Errorf("failed to get crypto history for %s: %w", id, err)
	}

	var points []PricePoint
	seen := make(map[string]bool)
	for _, pair := range result.Prices {
		if len(pair) != 2 {
			continue
		}
		day := portfolio.DayOf(time.UnixMilli(int64(pair[0])))
		key := day.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		points = append(points, PricePoint{Date: day, Price: pair[1]})
	}
	return points, nil
}

// chartResponse mirrors the Yahoo finance chart payload, down to the fields
// we read.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// GetStockPrice fetches the latest market price for a stock symbol.
func (c *Client) GetStockPrice(ctx context.Context, symbol string) (float64, error) {
	var result chartResponse

	req := c.stocks.R().
		SetQueryParam("range", "1d").
		SetQueryParam("interval", "1d").
		SetResult(&result)

	if _, err := c.doRequest(ctx, "GET", "/v8/finance/chart/"+symbol, req); err != nil {
		return 0, fmt.Errorf("failed to get stock price for %s: %w", symbol, err)
	}

	if len(result.Chart.Result) == 0 {
		return 0, fmt.Errorf("no chart data returned for %s", symbol)
	}
	return result.Chart.Result[0].Meta.RegularMarketPrice, nil
}

// GetStockHistory fetches a stock's daily closing prices over a date range.
func (c *Client) GetStockHistory(ctx context.Context, symbol string, from, to time.Time) ([]PricePoint, error) {
	var result chartResponse

	req := c.stocks.R().
		SetQueryParam("period1", strconv.FormatInt(from.Unix(), 10)).
		SetQueryParam("period2", strconv.FormatInt(to.Unix(), 10)).
		SetQueryParam("interval", "1d").
		SetResult(&result)

	if _, err := c.doRequest(ctx, "GET", "/v8/finance/chart/"+symbol, req); err != nil {
		return nil, fmt.Errorf("failed to get stock history for %s: %w", symbol, err)
	}

	if len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data returned for %s", symbol)
	}
	chart := result.Chart.Result[0]
	if len(chart.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote data returned for %s", symbol)
	}

	closes := chart.Indicators.Quote[0].Close
	var points []PricePoint
	for i, ts := range chart.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, PricePoint{
			Date:  portfolio.DayOf(time.Unix(ts, 0)),
			Price: *closes[i],
		})
	}
	return points, nil
}

// GetExchangeRates fetches the USD-based exchange rate table.
func (c *Client) GetExchangeRates(ctx context.Context) (portfolio.Rates, error) {
	type ratesResponse struct {
		Result string             `json:"result"`
		Rates  map[string]float64 `json:"rates"`
	}
	var result ratesResponse

	req := c.rates.R().SetResult(&result)

	if _, err := c.doRequest(ctx, "GET", "/latest/USD", req); err != nil {
		return nil, fmt.Errorf("failed to get exchange rates: %w", err)
	}
	if len(result.Rates) == 0 {
		return nil, fmt.Errorf("exchange rate response contained no rates")
	}

	rates := make(portfolio.Rates, len(result.Rates))
	for ccy, r := range result.Rates {
		rates[ccy] = r
	}
	rates["USD"] = 1
	return rates, nil
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
