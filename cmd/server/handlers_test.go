package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fintrack/internal/database"
	"fintrack/internal/marketdata"
	"fintrack/internal/portfolio"
	"fintrack/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedRates struct{}

func (fixedRates) Rates(ctx context.Context) portfolio.Rates {
	return portfolio.Rates{"USD": 1, "CNY": 7.25, "HKD": 7.8}
}

// noopClient satisfies the market-data surface without network access.
type noopClient struct{}

func (noopClient) GetCryptoPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (noopClient) GetCryptoHistory(ctx context.Context, id string, from, to time.Time) ([]marketdata.PricePoint, error) {
	return nil, nil
}

func (noopClient) GetStockPrice(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}

func (noopClient) GetStockHistory(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.PricePoint, error) {
	return nil, nil
}

func (noopClient) GetExchangeRates(ctx context.Context) (portfolio.Rates, error) {
	return portfolio.Rates{"USD": 1}, nil
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	// Named shared-cache memory DSN so every pooled connection sees one DB.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)

	log := zap.NewNop()
	client := noopClient{}
	pricesCache := marketdata.NewCache[map[string]float64](time.Minute, nil)

	priceSvc := service.NewPriceService(db, client, pricesCache, log)
	txSvc := service.NewTransactionService(db, fixedRates{}, log)
	depositSvc := service.NewDepositService(db, log)
	portfolioSvc := service.NewPortfolioService(db, priceSvc, fixedRates{}, log, nil)
	historySvc := service.NewHistoryService(db, client, fixedRates{}, log, 6*time.Hour, nil)

	handler := NewAPIHandler(txSvc, depositSvc, portfolioSvc, historySvc, log)
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["error"]
}

func TestTransactionLifecycleOverHTTP(t *testing.T) {
	srv := setupServer(t)

	resp := postJSON(t, srv.URL+"/api/transactions", `{
		"symbol": "AAPL", "asset_type": "stock", "trade_type": "buy",
		"quantity": 10, "price": 100, "fee": 5, "trade_date": "2024-01-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		TotalAmount float64 `json:"total_amount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.InDelta(t, 1005.0, created.TotalAmount, 1e-9)

	resp = postJSON(t, srv.URL+"/api/transactions", `{
		"symbol": "AAPL", "asset_type": "stock", "trade_type": "sell",
		"quantity": 4, "price": 150, "trade_date": "2024-02-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sell struct {
		RealizedPnl *float64 `json:"realized_pnl"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sell))
	resp.Body.Close()
	require.NotNil(t, sell.RealizedPnl)
	assert.InDelta(t, 200.0, *sell.RealizedPnl, 1e-9)
}

func TestOversellReturnsBadRequest(t *testing.T) {
	srv := setupServer(t)

	resp := postJSON(t, srv.URL+"/api/transactions", `{
		"symbol": "AAPL", "asset_type": "stock", "trade_type": "buy",
		"quantity": 3, "price": 100, "trade_date": "2024-01-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/transactions", `{
		"symbol": "AAPL", "asset_type": "stock", "trade_type": "sell",
		"quantity": 5, "price": 100, "trade_date": "2024-02-01T00:00:00Z"
	}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "available")
}

func TestDeleteUnknownReturnsNotFound(t *testing.T) {
	srv := setupServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/transactions/999", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decodeError(t, resp))
}

func TestWithdrawBeyondPrincipalReturnsBadRequest(t *testing.T) {
	srv := setupServer(t)

	resp := postJSON(t, srv.URL+"/api/deposits", `{
		"symbol": "CD-2024", "name": "1y CD", "principal": 1000,
		"interest_rate": 5, "start_date": "2024-01-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/deposits/1/withdraw", `{"amount": 2000}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "principal")
}

func TestSummaryEndpoint(t *testing.T) {
	srv := setupServer(t)

	resp := postJSON(t, srv.URL+"/api/transactions", `{
		"symbol": "AAPL", "asset_type": "stock", "trade_type": "buy",
		"quantity": 10, "price": 100, "total_amount": 1000, "trade_date": "2024-01-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary portfolio.PortfolioSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.InDelta(t, 1000.0, summary.TotalInvested, 1e-9)
	assert.InDelta(t, 1000.0, summary.TotalCurrentValue, 1e-9, "no market price falls back to cost basis")
}

func TestHealth(t *testing.T) {
	srv := setupServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
