package portfolio

import (
	"time"

	"fintrack/internal/models"
)

// DailyPnL is one calendar day's change in unrealized P&L.
type DailyPnL struct {
	Date string  `json:"date"`
	PnL  float64 `json:"pnl"`
}

// CalculateDailyPnL walks one month of the transaction log and emits the
// day-over-day change in unrealized P&L, a proxy for trading-day performance.
// Only market positions participate: fixed income has no unrealized
// component. The walk is seeded on the last day of the prior month and capped
// at today. Price resolution uses the exact date then the ten-day lookback,
// without the cross-walk last-known fallback the chart replay carries.
func CalculateDailyPnL(txs []models.Transaction, table PriceTable, rates Rates, year, month int, today time.Time) []DailyPnL {
	var market []models.Transaction
	for _, tx := range txs {
		if tx.IsMarket() {
			market = append(market, tx)
		}
	}
	if len(market) == 0 {
		return nil
	}
	ordered := sortChronological(market)

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	seedDay := monthStart.AddDate(0, 0, -1)
	end := monthStart.AddDate(0, 1, -1)
	if todayDay := DayOf(today); end.After(todayDay) {
		end = todayDay
	}
	if monthStart.After(end) {
		return nil
	}

	state := replayState{holdings: make(map[string]float64)}
	state.catchUp(ordered, seedDay, rates)
	prevUnrealized := unrealizedOn(&state, table, seedDay)

	results := make([]DailyPnL, 0, int(end.Sub(monthStart).Hours()/24)+1)
	for day := monthStart; !day.After(end); day = day.AddDate(0, 0, 1) {
		state.catchUp(ordered, day, rates)
		unrealized := unrealizedOn(&state, table, day)
		results = append(results, DailyPnL{
			Date: day.Format("2006-01-02"),
			PnL:  Round2(unrealized - prevUnrealized),
		})
		prevUnrealized = unrealized
	}
	return results
}

// unrealizedOn marks the current holdings to market on a day and subtracts
// cumulative invested capital.
func unrealizedOn(state *replayState, table PriceTable, day time.Time) float64 {
	var marketValue float64
	for symbol, qty := range state.holdings {
		if qty <= QuantityEpsilon {
			continue
		}
		if price, ok := lookbackPrice(table, symbol, day); ok {
			marketValue += qty * price
		}
	}
	return marketValue - state.invested
}
