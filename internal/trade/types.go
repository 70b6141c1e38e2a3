package trade

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iMOD07/AlpacaTradingBot/internal/broker/alpaca"
)

// Broker is the slice of the brokerage client the trade pipeline needs.
type Broker interface {
	GetLastQuote(ctx context.Context, symbol string) (alpaca.Quote, error)
	PlaceMarketableLimitBuy(ctx context.Context, symbol string, qty int, limitPrice decimal.Decimal, extendedHours bool) (json.RawMessage, error)
	PlaceOCO(ctx context.Context, symbol string, qty int, takeProfit, stopLoss decimal.Decimal) (json.RawMessage, error)
	GetOrderAvgFillPrice(ctx context.Context, orderID string) (decimal.Decimal, bool, error)
	ListOrders(ctx context.Context, status, side string, since time.Time, limit int) ([]alpaca.Order, error)
}

// AuditSink accepts append-only trade facts. Implementations must swallow
// their own failures; a broken audit trail never aborts an execution.
type AuditSink interface {
	Record(ctx context.Context, symbol, eventType, message string)
	RecordOrder(ctx context.Context, symbol, eventType, message, orderID string, payload []byte)
}

// RecordStore tracks the signal-to-close lifecycle rows.
type RecordStore interface {
	RecordSignal(ctx context.Context, symbol string, trigger, stop decimal.Decimal) error
	RecordEntry(ctx context.Context, symbol string, execPrice decimal.Decimal, qty int, buyOrderID string) error
	RecordExit(ctx context.Context, symbol string, exitPrice decimal.Decimal, reason string) error
}
