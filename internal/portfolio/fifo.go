package portfolio

import (
	"sort"

	"fintrack/internal/models"
)

// lot is one purchase (or income grant) awaiting FIFO consumption.
type lot struct {
	remaining float64
	unitUSD   float64
}

// sortChronological returns a copy of txs ordered by (TradeDate, ID) ascending.
// The ID tie-break keeps same-day trades in insertion order, so every replay
// over the same snapshot is deterministic.
func sortChronological(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TradeDate.Equal(out[j].TradeDate) {
			return out[i].TradeDate.Before(out[j].TradeDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// buildLots creates the FIFO lot queue from every buy and positive-quantity
// income in the already ordered transaction list.
func buildLots(ordered []models.Transaction, rates Rates) []lot {
	var lots []lot
	for _, tx := range ordered {
		if tx.TradeType == models.TradeTypeBuy ||
			(tx.TradeType == models.TradeTypeIncome && tx.Quantity > 0) {
			lots = append(lots, lot{
				remaining: tx.Quantity,
				unitUSD:   ToUSD(tx.Price, tx.Currency, rates),
			})
		}
	}
	return lots
}

// consumeLots takes quantity off the oldest lots first and returns the USD
// cost of what was taken. If the lots run out before quantity is covered the
// loop simply stops: inconsistent history is tolerated, not rejected, because
// holdings are a best-effort projection over data that may predate validation.
func consumeLots(lots []lot, quantity float64) float64 {
	var cost float64
	for i := range lots {
		if quantity <= QuantityEpsilon {
			break
		}
		if lots[i].remaining <= QuantityEpsilon {
			continue
		}
		take := quantity
		if take > lots[i].remaining {
			take = lots[i].remaining
		}
		cost += take * lots[i].unitUSD
		lots[i].remaining -= take
		quantity -= take
	}
	return cost
}

// priorTo reports whether tx comes before sell in (TradeDate, ID) order.
// A sell that has not been persisted yet (ID zero) sorts after every existing
// row on the same day.
func priorTo(tx, sell models.Transaction) bool {
	if tx.TradeDate.Before(sell.TradeDate) {
		return true
	}
	if !tx.TradeDate.Equal(sell.TradeDate) {
		return false
	}
	if sell.ID == 0 {
		return true
	}
	return tx.ID < sell.ID
}

// CalculateFifoRealizedPnl computes the realized P&L of one sell against the
// full market transaction history of its symbol. All prior sells are replayed
// first to reconstruct the lot queue as of just before this sell; the sell
// then consumes lots FIFO and its proceeds are compared against the cost of
// the consumed quantity. The result is rounded to two decimals.
func CalculateFifoRealizedPnl(history []models.Transaction, sell models.Transaction, rates Rates) float64 {
	ordered := make([]models.Transaction, 0, len(history))
	for _, tx := range history {
		if !tx.IsMarket() {
			continue
		}
		if sell.ID != 0 && tx.ID == sell.ID {
			continue
		}
		ordered = append(ordered, tx)
	}
	ordered = sortChronological(ordered)

	lots := buildLots(ordered, rates)
	for _, tx := range ordered {
		if tx.TradeType == models.TradeTypeSell && priorTo(tx, sell) {
			consumeLots(lots, tx.Quantity)
		}
	}

	costOfSold := consumeLots(lots, sell.Quantity)
	proceeds := ToUSD(sell.TotalAmount, sell.Currency, rates)
	return Round2(proceeds - costOfSold)
}

// AvailableQuantity returns how much of a symbol is still held, per the raw
// buy/income minus sell totals, floored at zero. excludeID removes one
// transaction from the sum, which is how an in-place sell update is validated
// against the rest of the history.
func AvailableQuantity(txs []models.Transaction, excludeID uint) float64 {
	var available float64
	for _, tx := range txs {
		if !tx.IsMarket() {
			continue
		}
		if excludeID != 0 && tx.ID == excludeID {
			continue
		}
		switch tx.TradeType {
		case models.TradeTypeBuy:
			available += tx.Quantity
		case models.TradeTypeIncome:
			if tx.Quantity > 0 {
				available += tx.Quantity
			}
		case models.TradeTypeSell:
			available -= tx.Quantity
		}
	}
	if available < 0 {
		return 0
	}
	return available
}
