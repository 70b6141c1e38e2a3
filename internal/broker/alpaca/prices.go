package alpaca

import "github.com/shopspring/decimal"

var decOne = decimal.NewFromInt(1)

// NormalizePrice applies tick-size rounding to a price about to be sent to
// the broker: 2 decimals at or above $1, 4 decimals below, half-up. Prices
// read from the broker are never normalized. Reapplying is idempotent.
func NormalizePrice(px decimal.Decimal) decimal.Decimal {
	if px.Cmp(decOne) >= 0 {
		return px.Round(2)
	}
	return px.Round(4)
}
