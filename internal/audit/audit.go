// Package audit turns trade pipeline facts into append-only store rows.
// Audit failures are logged and swallowed: a broken trail must never stop
// an execution in flight.
package audit

import (
	"context"

	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/store"
)

type Sink struct {
	store *store.Store
}

func NewSink(s *store.Store) *Sink {
	return &Sink{store: s}
}

func (a *Sink) Record(ctx context.Context, symbol, eventType, message string) {
	logger.Infof("[%s] %s: %s", symbol, eventType, message)
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.AppendTradeEvent(ctx, symbol, eventType, message, "", nil); err != nil {
		logger.Errorf("audit row for %s/%s not written: %v", symbol, eventType, err)
	}
}

func (a *Sink) RecordOrder(ctx context.Context, symbol, eventType, message, orderID string, payload []byte) {
	logger.Infof("[%s] %s: %s (orderId=%s)", symbol, eventType, message, orderID)
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.AppendTradeEvent(ctx, symbol, eventType, message, orderID, payload); err != nil {
		logger.Errorf("audit row for %s/%s not written: %v", symbol, eventType, err)
	}
}
