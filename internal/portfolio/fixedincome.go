package portfolio

import (
	"sort"
	"time"

	"fintrack/internal/models"
)

// FixedIncomeHolding is the derived state of one deposit or bond position.
// Interest accrues simply (no compounding), prorated by elapsed days over a
// 365-day year, and is recomputed live against the evaluation instant.
type FixedIncomeHolding struct {
	Symbol             string           `json:"symbol"`
	Name               string           `json:"name,omitempty"`
	AssetType          models.AssetType `json:"asset_type"`
	Principal          float64          `json:"principal"`
	RemainingPrincipal float64          `json:"remaining_principal"`
	InterestRate       float64          `json:"interest_rate"`
	AccruedInterest    float64          `json:"accrued_interest"`
	CurrentValue       float64          `json:"current_value"`
	StartDate          time.Time        `json:"start_date"`
}

// accrue computes simple daily-prorated interest on a principal. Elapsed days
// floor at zero so future-dated positions never accrue negative interest.
func accrue(principal, annualRatePercent float64, start, now time.Time) float64 {
	days := now.Sub(start).Hours() / 24
	if days < 0 {
		days = 0
	}
	return principal * (annualRatePercent / 100) * (days / 365)
}

// CalculateFixedIncomeHoldings derives deposit/bond positions recorded in the
// transaction log. Principal is net of sells; income rows are interest payouts
// and do not change principal. For fixed-income rows the Price column carries
// the annual rate in percent.
func CalculateFixedIncomeHoldings(txs []models.Transaction, rates Rates, now time.Time) []FixedIncomeHolding {
	groups := make(map[string][]models.Transaction)
	for _, tx := range txs {
		if !tx.IsFixedIncome() {
			continue
		}
		groups[tx.Symbol] = append(groups[tx.Symbol], tx)
	}

	holdings := make([]FixedIncomeHolding, 0, len(groups))
	for symbol, group := range groups {
		ordered := sortChronological(group)

		var bought, sold, rate float64
		var start time.Time
		assetType := ordered[0].AssetType
		for _, tx := range ordered {
			switch tx.TradeType {
			case models.TradeTypeBuy:
				bought += ToUSD(tx.TotalAmount, tx.Currency, rates)
				rate = tx.Price
				if start.IsZero() {
					start = tx.TradeDate
				}
			case models.TradeTypeSell:
				sold += ToUSD(tx.TotalAmount, tx.Currency, rates)
			}
		}

		remaining := bought - sold
		if remaining <= QuantityEpsilon {
			continue
		}

		interest := accrue(remaining, rate, start, now)
		holdings = append(holdings, FixedIncomeHolding{
			Symbol:             symbol,
			AssetType:          assetType,
			Principal:          bought,
			RemainingPrincipal: remaining,
			InterestRate:       rate,
			AccruedInterest:    interest,
			CurrentValue:       remaining + interest,
			StartDate:          start,
		})
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].CurrentValue > holdings[j].CurrentValue
	})
	return holdings
}

// DepositHoldings derives positions from dedicated Deposit records. Interest
// accrues on the withdrawn-adjusted principal from the deposit's start date.
func DepositHoldings(deposits []models.Deposit, rates Rates, now time.Time) []FixedIncomeHolding {
	holdings := make([]FixedIncomeHolding, 0, len(deposits))
	for _, d := range deposits {
		remaining := ToUSD(d.Remaining(), d.Currency, rates)
		if remaining <= QuantityEpsilon {
			continue
		}
		interest := accrue(remaining, d.InterestRate, d.StartDate, now)
		holdings = append(holdings, FixedIncomeHolding{
			Symbol:             d.Symbol,
			Name:               d.Name,
			AssetType:          models.AssetTypeDeposit,
			Principal:          ToUSD(d.Principal, d.Currency, rates),
			RemainingPrincipal: remaining,
			InterestRate:       d.InterestRate,
			AccruedInterest:    interest,
			CurrentValue:       remaining + interest,
			StartDate:          d.StartDate,
		})
	}
	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].CurrentValue > holdings[j].CurrentValue
	})
	return holdings
}
