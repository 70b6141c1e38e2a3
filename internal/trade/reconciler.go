package trade

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/metrics"
)

const reconcileListLimit = 100

// Exit reasons recorded for closed sell orders.
const (
	ExitTakeProfit = "TP"
	ExitStopLoss   = "SL"
)

// Reconciler polls the brokerage for closed sell orders and writes exit
// records for ones it has not seen before, classifying the exit reason by
// order type.
type Reconciler struct {
	broker   Broker
	records  RecordStore
	poll     time.Duration
	lookback time.Duration

	mu   sync.Mutex
	seen map[string]time.Time // order id -> first seen, pruned by time

	now func() time.Time
}

func NewReconciler(broker Broker, records RecordStore, poll, lookback time.Duration) *Reconciler {
	if poll <= 0 {
		poll = 10 * time.Second
	}
	if lookback <= 0 {
		lookback = 60 * time.Minute
	}
	return &Reconciler{
		broker:   broker,
		records:  records,
		poll:     poll,
		lookback: lookback,
		seen:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Run blocks until ctx is done, sweeping on a fixed cadence.
func (r *Reconciler) Run(ctx context.Context) {
	logger.Infof("exit reconciler started (poll=%s lookback=%s)", r.poll, r.lookback)
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Infof("exit reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass. Errors are logged, never fatal.
func (r *Reconciler) Sweep(ctx context.Context) {
	since := r.now().Add(-r.lookback)
	orders, err := r.broker.ListOrders(ctx, "closed", "sell", since, reconcileListLimit)
	if err != nil {
		logger.Errorf("exit poll failed: %v", err)
		return
	}
	for _, ord := range orders {
		if ord.ID == "" || !strings.EqualFold(ord.Side, "sell") || ord.Symbol == "" {
			continue
		}
		if !r.markSeen(ord.ID) {
			continue
		}
		raw := strings.TrimSpace(ord.FilledAvgPrice)
		if raw == "" {
			continue
		}
		exitPrice, err := decimal.NewFromString(raw)
		if err != nil {
			logger.Warnf("skipping order %s: bad fill price %q", ord.ID, raw)
			continue
		}
		reason := ClassifyExit(ord.Type)
		if err := r.records.RecordExit(ctx, ord.Symbol, exitPrice, reason); err != nil {
			logger.Errorf("exit record for %s not written: %v", ord.Symbol, err)
			continue
		}
		metrics.ExitsReconciled.WithLabelValues(reason).Inc()
		logger.Infof("exit recorded: %s %s @ %s (orderId=%s)", ord.Symbol, reason, exitPrice, ord.ID)
	}
	r.prune()
}

// markSeen reports whether id is new, recording it if so.
func (r *Reconciler) markSeen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = r.now()
	return true
}

// prune drops ids older than twice the lookback window. Orders that old can
// no longer reappear in a listing, so the set stays bounded by the window
// instead of growing for the process lifetime.
func (r *Reconciler) prune() {
	cutoff := r.now().Add(-2 * r.lookback)
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, at := range r.seen {
		if at.Before(cutoff) {
			delete(r.seen, id)
		}
	}
}

// ClassifyExit maps a brokerage order type to an exit reason: limit sells
// are take-profits, any stop variant is a stop-loss, anything else defaults
// to take-profit.
func ClassifyExit(orderType string) string {
	switch strings.ToLower(strings.TrimSpace(orderType)) {
	case "limit":
		return ExitTakeProfit
	case "stop", "stop_limit", "stop_limit_order", "trailing_stop":
		return ExitStopLoss
	default:
		return ExitTakeProfit
	}
}
