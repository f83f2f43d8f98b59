package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/models"
)

func TestCalculateHoldingsScenario(t *testing.T) {
	rates := Rates{"USD": 1}
	pnl := 200.0
	sell := marketTx(2, models.TradeTypeSell, "2024-02-01", 4, 150, 600)
	sell.RealizedPnl = &pnl

	txs := []models.Transaction{
		marketTx(1, models.TradeTypeBuy, "2024-01-01", 10, 100, 1005),
		sell,
	}

	holdings := CalculateHoldings(txs, map[string]float64{"AAPL": 150}, rates)
	require.Len(t, holdings, 1)

	h := holdings[0]
	assert.Equal(t, "AAPL", h.Symbol)
	assert.InDelta(t, 6.0, h.Quantity, QuantityEpsilon)
	assert.InDelta(t, 100.0, h.AvgCost, 1e-9)
	assert.InDelta(t, 600.0, h.TotalCost, 1e-9)
	assert.InDelta(t, 900.0, h.CurrentValue, 1e-9)
	assert.InDelta(t, 300.0, h.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 50.0, h.UnrealizedPnLPercent, 1e-9)
	assert.Equal(t, 200.0, h.RealizedPnL)
	assert.Equal(t, day("2024-01-01"), h.FirstBuyDate)
}

func TestCalculateHoldingsOmitsExitedSymbols(t *testing.T) {
	rates := Rates{"USD": 1}
	txs := []models.Transaction{
		marketTx(1, models.TradeTypeBuy, "2024-01-01", 5, 100, 500),
		marketTx(2, models.TradeTypeSell, "2024-02-01", 5, 120, 600),
	}

	holdings := CalculateHoldings(txs, nil, rates)
	assert.Empty(t, holdings)
}

func TestCalculateHoldingsNeverNegative(t *testing.T) {
	rates := Rates{"USD": 1}
	// Over-sold history from before validation existed.
	txs := []models.Transaction{
		marketTx(1, models.TradeTypeBuy, "2024-01-01", 3, 100, 300),
		marketTx(2, models.TradeTypeSell, "2024-02-01", 5, 100, 500),
	}

	for _, h := range CalculateHoldings(txs, nil, rates) {
		assert.Greater(t, h.Quantity, 0.0)
	}
}

func TestCalculateHoldingsPriceFallsBackToAvgCost(t *testing.T) {
	rates := Rates{"USD": 1}
	txs := []models.Transaction{
		marketTx(1, models.TradeTypeBuy, "2024-01-01", 10, 100, 1000),
	}

	holdings := CalculateHoldings(txs, map[string]float64{}, rates)
	require.Len(t, holdings, 1)
	assert.Equal(t, 100.0, holdings[0].CurrentPrice)
	assert.InDelta(t, 0.0, holdings[0].UnrealizedPnL, 1e-9)
}

func TestCalculateHoldingsLegacyRealizedPnlFallback(t *testing.T) {
	rates := Rates{"USD": 1}
	// A sell without a persisted value triggers the one-pass FIFO recompute.
	txs := []models.Transaction{
		marketTx(1, models.TradeTypeBuy, "2024-01-01", 10, 100, 1000),
		marketTx(2, models.TradeTypeSell, "2024-02-01", 4, 150, 600),
	}

	holdings := CalculateHoldings(txs, nil, rates)
	require.Len(t, holdings, 1)
	assert.Equal(t, 200.0, holdings[0].RealizedPnL)
}

func TestCalculateHoldingsPersistedPnlPreferred(t *testing.T) {
	rates := Rates{"USD": 1}
	// A non-zero persisted value is the source of truth even if a recompute
	// would disagree.
	persisted := 123.45
	sell := marketTx(2, models.TradeTypeSell, "2024-02-01", 4, 150, 600)
	sell.RealizedPnl = &persisted

	txs := []models.Transaction{
		marketTx(1, models.TradeTypeBuy, "2024-01-01", 10, 100, 1000),
		sell,
	}

	holdings := CalculateHoldings(txs, nil, rates)
	require.Len(t, holdings, 1)
	assert.Equal(t, 123.45, holdings[0].RealizedPnL)
}

func TestCalculateHoldingsQuantityConservation(t *testing.T) {
	rates := Rates{"USD": 1}
	txs := []models.Transaction{
		marketTx(1, models.TradeTypeBuy, "2024-01-01", 10, 100, 1000),
		marketTx(2, models.TradeTypeIncome, "2024-01-05", 2, 0, 0),
		marketTx(3, models.TradeTypeSell, "2024-02-01", 7, 120, 840),
	}

	holdings := CalculateHoldings(txs, nil, rates)
	require.Len(t, holdings, 1)
	// remaining + sold == bought + income
	assert.InDelta(t, 12.0, holdings[0].Quantity+7, QuantityEpsilon)
}

func TestCalculateHoldingsSortedByValueDescending(t *testing.T) {
	rates := Rates{"USD": 1}
	small := marketTx(1, models.TradeTypeBuy, "2024-01-01", 1, 50, 50)
	big := marketTx(2, models.TradeTypeBuy, "2024-01-01", 10, 500, 5000)
	big.Symbol = "BTC"
	big.AssetType = models.AssetTypeCrypto

	holdings := CalculateHoldings([]models.Transaction{small, big}, nil, rates)
	require.Len(t, holdings, 2)
	assert.Equal(t, "BTC", holdings[0].Symbol)
	assert.Equal(t, "AAPL", holdings[1].Symbol)
}

func TestCalculateHoldingsIgnoresFixedIncome(t *testing.T) {
	deposit := models.Transaction{
		Symbol:      "CD-2024",
		AssetType:   models.AssetTypeDeposit,
		TradeType:   models.TradeTypeBuy,
		TotalAmount: 10000,
		Currency:    "USD",
		TradeDate:   day("2024-01-01"),
	}
	deposit.ID = 1

	holdings := CalculateHoldings([]models.Transaction{deposit}, nil, Rates{"USD": 1})
	assert.Empty(t, holdings)
}
