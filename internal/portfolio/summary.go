package portfolio

// PortfolioSummary rolls every position into aggregate totals.
type PortfolioSummary struct {
	TotalInvested      float64 `json:"total_invested"`
	TotalCurrentValue  float64 `json:"total_current_value"`
	TotalUnrealizedPnL float64 `json:"total_unrealized_pnl"`
	TotalRealizedPnL   float64 `json:"total_realized_pnl"`
	TotalPnLPercent    float64 `json:"total_pnl_percent"`
}

// AllocationItem is one slice of the allocation breakdown.
type AllocationItem struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// CalculatePortfolioSummary aggregates market holdings and fixed-income
// positions. Fixed income contributes principal and accrued interest to the
// totals but nothing to unrealized P&L: interest is additive, not a paper
// gain on principal.
func CalculatePortfolioSummary(holdings []Holding, fixedIncome []FixedIncomeHolding) PortfolioSummary {
	var s PortfolioSummary
	for _, h := range holdings {
		s.TotalInvested += h.TotalCost
		s.TotalCurrentValue += h.CurrentValue
		s.TotalUnrealizedPnL += h.UnrealizedPnL
		s.TotalRealizedPnL += h.RealizedPnL
	}
	for _, f := range fixedIncome {
		s.TotalInvested += f.RemainingPrincipal
		s.TotalCurrentValue += f.RemainingPrincipal + f.AccruedInterest
	}
	if s.TotalInvested != 0 {
		s.TotalPnLPercent = s.TotalUnrealizedPnL / s.TotalInvested * 100
	}
	return s
}

// CalculateAllocationData turns every holding and fixed-income position into
// a {name, value, percentage} slice. Percentages are shares of the combined
// market and fixed-income value, zero when the total is zero.
func CalculateAllocationData(holdings []Holding, fixedIncome []FixedIncomeHolding) []AllocationItem {
	items := make([]AllocationItem, 0, len(holdings)+len(fixedIncome))
	var total float64

	for _, h := range holdings {
		items = append(items, AllocationItem{Name: h.Symbol, Value: h.CurrentValue})
		total += h.CurrentValue
	}
	for _, f := range fixedIncome {
		name := f.Name
		if name == "" {
			name = f.Symbol
		}
		value := f.RemainingPrincipal + f.AccruedInterest
		items = append(items, AllocationItem{Name: name, Value: value})
		total += value
	}

	if total > 0 {
		for i := range items {
			items[i].Percentage = items[i].Value / total * 100
		}
	}
	return items
}
