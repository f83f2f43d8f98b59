package portfolio

import (
	"fmt"
	"sort"

	"fintrack/internal/models"
)

// TradeAnalysis is a per-symbol reporting aggregation of trading activity,
// all amounts in USD.
type TradeAnalysis struct {
	Symbol       string  `json:"symbol"`
	BuyCount     int     `json:"buy_count"`
	SellCount    int     `json:"sell_count"`
	BuyVolume    float64 `json:"buy_volume"`
	SellVolume   float64 `json:"sell_volume"`
	AvgBuyPrice  float64 `json:"avg_buy_price"`
	AvgSellPrice float64 `json:"avg_sell_price"`
	IncomeAmount float64 `json:"income_amount"`
	TotalFees    float64 `json:"total_fees"`
	RealizedPnL  float64 `json:"realized_pnl"`
}

// SortKey selects the numeric field AnalyzeTradePatterns results are ordered
// by. An enumerated key mapped to an accessor avoids any reflective lookup of
// caller-supplied field names.
type SortKey string

const (
	SortByBuyVolume   SortKey = "buy_volume"
	SortBySellVolume  SortKey = "sell_volume"
	SortByTotalFees   SortKey = "total_fees"
	SortByRealizedPnL SortKey = "realized_pnl"
	SortByIncome      SortKey = "income_amount"
)

var sortAccessors = map[SortKey]func(TradeAnalysis) float64{
	SortByBuyVolume:   func(a TradeAnalysis) float64 { return a.BuyVolume },
	SortBySellVolume:  func(a TradeAnalysis) float64 { return a.SellVolume },
	SortByTotalFees:   func(a TradeAnalysis) float64 { return a.TotalFees },
	SortByRealizedPnL: func(a TradeAnalysis) float64 { return a.RealizedPnL },
	SortByIncome:      func(a TradeAnalysis) float64 { return a.IncomeAmount },
}

// ParseSortKey validates a caller-supplied sort key, defaulting to buy volume
// when empty.
func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortByBuyVolume, nil
	}
	key := SortKey(s)
	if _, ok := sortAccessors[key]; !ok {
		return "", fmt.Errorf("unknown sort key %q", s)
	}
	return key, nil
}

// AnalyzeTradePatterns aggregates per-symbol buy/sell/income volume, average
// prices, fees and realized P&L over the market transaction history, sorted
// descending by the given key.
func AnalyzeTradePatterns(txs []models.Transaction, rates Rates, key SortKey) []TradeAnalysis {
	type agg struct {
		TradeAnalysis
		buyQty, sellQty float64
	}
	buckets := make(map[string]*agg)
	for _, tx := range txs {
		if !tx.IsMarket() {
			continue
		}
		a := buckets[tx.Symbol]
		if a == nil {
			a = &agg{TradeAnalysis: TradeAnalysis{Symbol: tx.Symbol}}
			buckets[tx.Symbol] = a
		}
		amount := ToUSD(tx.TotalAmount, tx.Currency, rates)
		a.TotalFees += ToUSD(tx.Fee, tx.Currency, rates)
		switch tx.TradeType {
		case models.TradeTypeBuy:
			a.BuyCount++
			a.BuyVolume += amount
			a.buyQty += tx.Quantity
		case models.TradeTypeSell:
			a.SellCount++
			a.SellVolume += amount
			a.sellQty += tx.Quantity
			if tx.RealizedPnl != nil {
				a.RealizedPnL += *tx.RealizedPnl
			}
		case models.TradeTypeIncome:
			a.IncomeAmount += amount
		}
	}

	results := make([]TradeAnalysis, 0, len(buckets))
	for _, a := range buckets {
		if a.buyQty > QuantityEpsilon {
			a.AvgBuyPrice = a.BuyVolume / a.buyQty
		}
		if a.sellQty > QuantityEpsilon {
			a.AvgSellPrice = a.SellVolume / a.sellQty
		}
		results = append(results, a.TradeAnalysis)
	}

	accessor, ok := sortAccessors[key]
	if !ok {
		accessor = sortAccessors[SortByBuyVolume]
	}
	sort.SliceStable(results, func(i, j int) bool {
		if accessor(results[i]) != accessor(results[j]) {
			return accessor(results[i]) > accessor(results[j])
		}
		return results[i].Symbol < results[j].Symbol
	})
	return results
}
