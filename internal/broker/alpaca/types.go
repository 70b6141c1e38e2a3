package alpaca

import "github.com/shopspring/decimal"

// Account is the subset of /v2/account the bot cares about. Alpaca encodes
// monetary fields as JSON strings.
type Account struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Currency    string `json:"currency"`
	Cash        string `json:"cash"`
	BuyingPower string `json:"buying_power"`
}

// Quote is the latest NBBO for a symbol.
type Quote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Order is one entry of a /v2/orders listing.
type Order struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	FilledAvgPrice string `json:"filled_avg_price"`
}
