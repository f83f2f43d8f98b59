package portfolio

import (
	"time"

	"fintrack/internal/models"
)

// lookbackDays bounds how far back the replay walks when a sample date has no
// recorded price for a held symbol.
const lookbackDays = 10

// PriceTable resolves a symbol's USD price on an exact UTC day. The lookback
// and carry-forward policy lives in the replay engine, not the table.
type PriceTable interface {
	Lookup(symbol string, day time.Time) (float64, bool)
}

// MemoryPriceTable is a PriceTable over an in-memory per-symbol-per-day map.
type MemoryPriceTable struct {
	prices map[string]map[string]float64
}

// NewMemoryPriceTable returns an empty table.
func NewMemoryPriceTable() *MemoryPriceTable {
	return &MemoryPriceTable{prices: make(map[string]map[string]float64)}
}

// Add records a price for a symbol on a day. Adding the same day twice keeps
// the first value, matching the store's first-write-wins semantics.
func (t *MemoryPriceTable) Add(symbol string, day time.Time, price float64) {
	bySym := t.prices[symbol]
	if bySym == nil {
		bySym = make(map[string]float64)
		t.prices[symbol] = bySym
	}
	key := DayOf(day).Format("2006-01-02")
	if _, exists := bySym[key]; exists {
		return
	}
	bySym[key] = price
}

// Lookup implements PriceTable.
func (t *MemoryPriceTable) Lookup(symbol string, day time.Time) (float64, bool) {
	p, ok := t.prices[symbol][DayOf(day).Format("2006-01-02")]
	return p, ok
}

// DayOf normalizes a timestamp to UTC midnight. All replay sampling is done
// at day granularity.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ChartPoint is one day's sample of cumulative invested capital and
// mark-to-market portfolio value.
type ChartPoint struct {
	Date     string  `json:"date"`
	Invested float64 `json:"invested"`
	Value    float64 `json:"value"`
}

// replayState is the running state carried across a day walk.
type replayState struct {
	holdings         map[string]float64
	invested         float64
	fixedIncomeValue float64
	cursor           int
}

// apply folds one transaction into the running state.
func (s *replayState) apply(tx models.Transaction, rates Rates) {
	amount := ToUSD(tx.TotalAmount, tx.Currency, rates)
	if tx.IsFixedIncome() {
		switch tx.TradeType {
		case models.TradeTypeBuy:
			s.invested += amount
			s.fixedIncomeValue += amount
		case models.TradeTypeSell:
			s.invested -= amount
			s.fixedIncomeValue -= amount
		case models.TradeTypeIncome:
			s.invested += amount
		}
		return
	}
	switch tx.TradeType {
	case models.TradeTypeBuy:
		s.invested += amount
		s.holdings[tx.Symbol] += tx.Quantity
	case models.TradeTypeSell:
		s.invested -= amount
		s.holdings[tx.Symbol] -= tx.Quantity
		if s.holdings[tx.Symbol] < 0 {
			s.holdings[tx.Symbol] = 0
		}
	case models.TradeTypeIncome:
		if tx.Quantity > 0 {
			s.invested += amount
			s.holdings[tx.Symbol] += tx.Quantity
		}
	}
}

// catchUp applies every not-yet-applied transaction dated on or before day.
func (s *replayState) catchUp(ordered []models.Transaction, day time.Time, rates Rates) {
	for s.cursor < len(ordered) && !DayOf(ordered[s.cursor].TradeDate).After(day) {
		s.apply(ordered[s.cursor], rates)
		s.cursor++
	}
}

// lookbackPrice resolves a price on day, walking backward up to lookbackDays
// calendar days for the nearest earlier recorded price.
func lookbackPrice(table PriceTable, symbol string, day time.Time) (float64, bool) {
	for i := 0; i <= lookbackDays; i++ {
		if p, ok := table.Lookup(symbol, day.AddDate(0, 0, -i)); ok {
			return p, true
		}
	}
	return 0, false
}

// BuildChartData replays the transaction log day by day from the first trade
// through today, emitting one sample per UTC calendar day. A held symbol with
// no price on a sample date falls back first to the ten-day lookback, then to
// the last price resolved for it earlier in this walk, so a data gap never
// zeroes out a position that has ever been priced.
func BuildChartData(txs []models.Transaction, table PriceTable, rates Rates, today time.Time) []ChartPoint {
	if len(txs) == 0 {
		return nil
	}
	ordered := sortChronological(txs)
	start := DayOf(ordered[0].TradeDate)
	end := DayOf(today)
	if start.After(end) {
		return nil
	}

	state := replayState{holdings: make(map[string]float64)}
	lastKnown := make(map[string]float64)
	points := make([]ChartPoint, 0, int(end.Sub(start).Hours()/24)+1)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		state.catchUp(ordered, day, rates)

		var marketValue float64
		for symbol, qty := range state.holdings {
			if qty <= QuantityEpsilon {
				continue
			}
			price, ok := lookbackPrice(table, symbol, day)
			if !ok {
				price, ok = lastKnown[symbol]
				if !ok {
					continue
				}
			}
			lastKnown[symbol] = price
			marketValue += qty * price
		}

		points = append(points, ChartPoint{
			Date:     day.Format("2006-01-02"),
			Invested: Round2(state.invested),
			Value:    Round2(marketValue + state.fixedIncomeValue),
		})
	}
	return points
}
