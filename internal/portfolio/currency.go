package portfolio

import "math"

// Rates maps a currency code to its rate relative to USD, i.e. how many units
// of that currency one USD buys. rates["USD"] is always 1.
type Rates map[string]float64

// QuantityEpsilon is the tolerance used for all quantity comparisons.
const QuantityEpsilon = 1e-8

// ToUSD converts an amount denominated in currency into USD.
// USD amounts and amounts in currencies missing from the rate table pass
// through unchanged; an incomplete rate table must never make a read fail.
func ToUSD(amount float64, currency string, rates Rates) float64 {
	if currency == "" || currency == "USD" {
		return amount
	}
	rate, ok := rates[currency]
	if !ok || rate == 0 {
		return amount
	}
	return amount / rate
}

// ConvertAmount converts a USD amount into the target display currency.
func ConvertAmount(usdAmount float64, target string, rates Rates) float64 {
	if target == "" || target == "USD" {
		return usdAmount
	}
	rate, ok := rates[target]
	if !ok || rate == 0 {
		return usdAmount
	}
	return usdAmount * rate
}

// Round2 rounds a currency amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
