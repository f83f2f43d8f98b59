package portfolio

import (
	"sort"
	"time"

	"fintrack/internal/models"
)

// Holding is the derived state of one open market position. It is recomputed
// fresh from the transaction log on every read; nothing here is persisted.
type Holding struct {
	Symbol               string           `json:"symbol"`
	AssetType            models.AssetType `json:"asset_type"`
	Quantity             float64          `json:"quantity"`
	AvgCost              float64          `json:"avg_cost"`
	TotalCost            float64          `json:"total_cost"`
	CurrentPrice         float64          `json:"current_price"`
	CurrentValue         float64          `json:"current_value"`
	UnrealizedPnL        float64          `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64          `json:"unrealized_pnl_percent"`
	RealizedPnL          float64          `json:"realized_pnl"`
	FirstBuyDate         time.Time        `json:"first_buy_date"`
}

// CalculateHoldings projects the transaction log into one Holding per symbol
// with a net positive remaining quantity. Fully exited symbols are omitted.
// Prices and amounts are converted to USD as they are grouped; the remaining
// cost basis is determined by FIFO-consuming the sold quantity off the
// earliest buys. Results are sorted by current value, largest first.
func CalculateHoldings(txs []models.Transaction, currentPrices map[string]float64, rates Rates) []Holding {
	groups := make(map[string][]models.Transaction)
	for _, tx := range txs {
		if !tx.IsMarket() {
			continue
		}
		groups[tx.Symbol] = append(groups[tx.Symbol], tx)
	}

	holdings := make([]Holding, 0, len(groups))
	for symbol, group := range groups {
		ordered := sortChronological(group)

		var totalBought, totalSold float64
		var persistedPnl float64
		var hasPersistedPnl, hasSell bool
		var firstBuy time.Time
		assetType := ordered[0].AssetType

		for _, tx := range ordered {
			switch tx.TradeType {
			case models.TradeTypeBuy:
				totalBought += tx.Quantity
				if firstBuy.IsZero() {
					firstBuy = tx.TradeDate
				}
			case models.TradeTypeIncome:
				if tx.Quantity > 0 {
					totalBought += tx.Quantity
					if firstBuy.IsZero() {
						firstBuy = tx.TradeDate
					}
				}
			case models.TradeTypeSell:
				totalSold += tx.Quantity
				hasSell = true
				if tx.RealizedPnl != nil {
					persistedPnl += *tx.RealizedPnl
					if *tx.RealizedPnl != 0 {
						hasPersistedPnl = true
					}
				}
			}
		}

		remaining := totalBought - totalSold
		if remaining <= QuantityEpsilon {
			continue
		}

		lots := buildLots(ordered, rates)
		consumeLots(lots, totalSold)
		var totalCost float64
		for _, l := range lots {
			if l.remaining > QuantityEpsilon {
				totalCost += l.remaining * l.unitUSD
			}
		}
		avgCost := totalCost / remaining

		// Persisted per-sell values are the source of truth. The recompute
		// path only covers legacy rows written before realized P&L was stored.
		realized := persistedPnl
		if !hasPersistedPnl && hasSell {
			realized = recomputeRealizedPnl(ordered, rates)
		}

		currentPrice, ok := currentPrices[symbol]
		if !ok || currentPrice == 0 {
			currentPrice = avgCost
		}
		currentValue := remaining * currentPrice
		unrealized := currentValue - totalCost
		unrealizedPct := 0.0
		if totalCost != 0 {
			unrealizedPct = unrealized / totalCost * 100
		}

		holdings = append(holdings, Holding{
			Symbol:               symbol,
			AssetType:            assetType,
			Quantity:             remaining,
			AvgCost:              avgCost,
			TotalCost:            totalCost,
			CurrentPrice:         currentPrice,
			CurrentValue:         currentValue,
			UnrealizedPnL:        unrealized,
			UnrealizedPnLPercent: unrealizedPct,
			RealizedPnL:          realized,
			FirstBuyDate:         firstBuy,
		})
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].CurrentValue > holdings[j].CurrentValue
	})
	return holdings
}

// recomputeRealizedPnl does a single FIFO pass over a symbol's ordered
// history, accumulating realized P&L for every sell encountered.
func recomputeRealizedPnl(ordered []models.Transaction, rates Rates) float64 {
	var lots []lot
	var realized float64
	for _, tx := range ordered {
		switch tx.TradeType {
		case models.TradeTypeBuy:
			lots = append(lots, lot{remaining: tx.Quantity, unitUSD: ToUSD(tx.Price, tx.Currency, rates)})
		case models.TradeTypeIncome:
			if tx.Quantity > 0 {
				lots = append(lots, lot{remaining: tx.Quantity, unitUSD: ToUSD(tx.Price, tx.Currency, rates)})
			}
		case models.TradeTypeSell:
			cost := consumeLots(lots, tx.Quantity)
			realized += ToUSD(tx.TotalAmount, tx.Currency, rates) - cost
		}
	}
	return Round2(realized)
}
