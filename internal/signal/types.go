package signal

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoSignal means the text is not a trade signal. It is an expected
// outcome, not a failure.
var ErrNoSignal = errors.New("no trade signal in text")

// TradeSignal is the structured result of parsing a recommendation message.
type TradeSignal struct {
	Symbol  string
	Trigger decimal.Decimal
	Stop    decimal.Decimal
	Targets []decimal.Decimal
}

// Parser extracts a TradeSignal from free text. Implementations return
// ErrNoSignal when the text lacks a required field.
type Parser interface {
	Parse(ctx context.Context, text string) (*TradeSignal, error)
}
