package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestClient creates a Client with every base URL pointed at the test
// server and rate limiting disabled.
func setupTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	restyClient := func() *resty.Client {
		return resty.New().SetBaseURL(server.URL).SetTimeout(5 * time.Second)
	}

	c := &Client{
		crypto:  restyClient(),
		stocks:  restyClient(),
		rates:   restyClient(),
		logger:  zap.NewNop(),
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	return c, server
}

func TestGetExchangeRates(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/latest/USD", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":"success","rates":{"USD":1,"CNY":7.21,"HKD":7.83}}`))
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		rates, err := c.GetExchangeRates(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1.0, rates["USD"])
		assert.Equal(t, 7.21, rates["CNY"])
		assert.Equal(t, 7.83, rates["HKD"])
	})

	t.Run("EmptyResponse", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":"success","rates":{}}`))
		})
		c, server := setupTestClient(handler)
		defer server.Close()

		_, err := c.GetExchangeRates(context.Background())
		assert.Error(t, err)
	})
}

func TestGetCryptoPrices(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":64000.5},"ethereum":{"usd":3000}}`))
	})
	c, server := setupTestClient(handler)
	defer server.Close()

	prices, err := c.GetCryptoPrices(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	assert.Equal(t, 64000.5, prices["bitcoin"])
	assert.Equal(t, 3000.0, prices["ethereum"])
}

func TestGetCryptoHistoryCollapsesToDaily(t *testing.T) {
	// Two samples on the same UTC day: the first one wins.
	day1a := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC).UnixMilli()
	day1b := time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC).UnixMilli()
	day2 := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC).UnixMilli()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart/range", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(
			`{"prices":[[` +
				formatInt(day1a) + `,100],[` +
				formatInt(day1b) + `,110],[` +
				formatInt(day2) + `,120]]}`))
	})
	c, server := setupTestClient(handler)
	defer server.Close()

	points, err := c.GetCryptoHistory(context.Background(), "bitcoin",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 100.0, points[0].Price)
	assert.Equal(t, 120.0, points[1].Price)
}

func TestGetStockPrice(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":191.52}}]}}`))
	})
	c, server := setupTestClient(handler)
	defer server.Close()

	price, err := c.GetStockPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 191.52, price)
}

func TestGetStockHistorySkipsNullCloses(t *testing.T) {
	ts1 := time.Date(2024, 1, 1, 21, 0, 0, 0, time.UTC).Unix()
	ts2 := time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC).Unix()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(
			`{"chart":{"result":[{"timestamp":[` +
				formatInt(ts1) + `,` + formatInt(ts2) +
				`],"indicators":{"quote":[{"close":[190.1,null]}]}}]}}`))
	})
	c, server := setupTestClient(handler)
	defer server.Close()

	points, err := c.GetStockHistory(context.Background(), "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 190.1, points[0].Price)
}

func TestClientErrorDoesNotRetryOn4xx(t *testing.T) {
	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
	c, server := setupTestClient(handler)
	defer server.Close()

	_, err := c.GetStockPrice(context.Background(), "NOPE")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
