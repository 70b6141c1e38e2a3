package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/metrics"
	"github.com/iMOD07/AlpacaTradingBot/internal/signal"
	"github.com/iMOD07/AlpacaTradingBot/internal/watch"
)

// slippageAllowance prices the entry limit 0.2% above the trigger so the
// order is marketable without accepting unbounded slippage.
var slippageAllowance = decimal.RequireFromString("1.002")

var decTenThousand = decimal.NewFromInt(10000)

// CoordinatorConfig carries the execution policies.
type CoordinatorConfig struct {
	PollInterval time.Duration
	WatchTimeout time.Duration
	// MaxSpreadBps rejects execution when the quoted spread is wider;
	// 0 disables the gate and proceeds regardless.
	MaxSpreadBps int
	// ShiftStopWithFill moves the stop-loss by the same ratio as the
	// fill drifted from the trigger, symmetric to the take-profit.
	// When false the stop stays at the parsed signal stop.
	ShiftStopWithFill bool
}

// Coordinator arms trigger watches and, once one fires, drives the entry
// and bracket-exit order pipeline. A failure in one execution instance is
// converted into an audit fact and never affects other armed watches.
type Coordinator struct {
	broker  Broker
	watcher *watch.Watcher
	audit   AuditSink
	records RecordStore
	cfg     CoordinatorConfig
}

func NewCoordinator(broker Broker, watcher *watch.Watcher, audit AuditSink, records RecordStore, cfg CoordinatorConfig) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1200 * time.Millisecond
	}
	if cfg.WatchTimeout <= 0 {
		cfg.WatchTimeout = 15 * time.Minute
	}
	return &Coordinator{
		broker:  broker,
		watcher: watcher,
		audit:   audit,
		records: records,
		cfg:     cfg,
	}
}

// ArmSignal registers the price watch for a parsed signal and its plan.
// tpPct and extendedHours are captured per signal because settings may
// change while the watch is armed.
func (c *Coordinator) ArmSignal(ctx context.Context, sig *signal.TradeSignal, plan Plan, tpPct decimal.Decimal, extendedHours bool) (*watch.Handle, error) {
	c.audit.Record(ctx, sig.Symbol, "ARMED",
		fmt.Sprintf("Armed trigger at %s with SL %s", sig.Trigger, sig.Stop))
	if err := c.records.RecordSignal(ctx, sig.Symbol, sig.Trigger, sig.Stop); err != nil {
		logger.Warnf("trade record for %s not written: %v", sig.Symbol, err)
	}
	stop := sig.Stop
	trigger := sig.Trigger
	return c.watcher.Arm(sig.Symbol, trigger, c.cfg.PollInterval, c.cfg.WatchTimeout, func(evt watch.TriggerEvent) {
		c.execute(context.Background(), evt, plan, stop, tpPct, extendedHours)
	})
}

func (c *Coordinator) execute(ctx context.Context, evt watch.TriggerEvent, plan Plan, signalStop, tpPct decimal.Decimal, extendedHours bool) {
	c.audit.Record(ctx, evt.Symbol, "TRIGGER",
		fmt.Sprintf("Trigger %s crossed at %s", evt.Trigger, evt.LastPrice))

	quote, err := c.broker.GetLastQuote(ctx, evt.Symbol)
	if err != nil {
		c.fail(ctx, evt.Symbol, err)
		return
	}
	spreadBps := SpreadBps(quote.Bid, quote.Ask)
	if c.cfg.MaxSpreadBps > 0 && spreadBps > c.cfg.MaxSpreadBps {
		c.audit.Record(ctx, evt.Symbol, "SKIPPED",
			fmt.Sprintf("Spread too wide: %dbps > %dbps", spreadBps, c.cfg.MaxSpreadBps))
		metrics.Executions.WithLabelValues("skipped").Inc()
		return
	}

	limit := evt.Trigger.Mul(slippageAllowance)
	buyResp, err := c.broker.PlaceMarketableLimitBuy(ctx, evt.Symbol, plan.Quantity, limit, extendedHours)
	if err != nil {
		c.fail(ctx, evt.Symbol, err)
		return
	}
	buyOrderID := gjson.GetBytes(buyResp, "id").String()

	// Fill price fallback to the crossing price is an estimate, not an
	// error: the order may not have settled yet.
	execPrice, ok, err := c.broker.GetOrderAvgFillPrice(ctx, buyOrderID)
	if err != nil || !ok {
		if err != nil {
			logger.Warnf("fill price lookup for %s failed: %v", buyOrderID, err)
		}
		execPrice = evt.LastPrice
	}

	c.audit.RecordOrder(ctx, evt.Symbol, "ENTRY_FILLED",
		fmt.Sprintf("Bought %d @ %s", plan.Quantity, execPrice), buyOrderID, buyResp)
	if err := c.records.RecordEntry(ctx, evt.Symbol, execPrice, plan.Quantity, buyOrderID); err != nil {
		logger.Warnf("entry record for %s not written: %v", evt.Symbol, err)
	}

	// The take-profit tracks the actual fill so entry slippage is absorbed
	// into the target; the stop shifts only when policy says so.
	tp := ComputeTakeProfit(execPrice, tpPct)
	sl := signalStop
	if c.cfg.ShiftStopWithFill && evt.Trigger.Sign() > 0 {
		sl = signalStop.Mul(execPrice.Div(evt.Trigger))
	}

	ocoResp, err := c.broker.PlaceOCO(ctx, evt.Symbol, plan.Quantity, tp, sl)
	if err != nil {
		c.fail(ctx, evt.Symbol, err)
		return
	}
	parentID := gjson.GetBytes(ocoResp, "id").String()
	c.audit.RecordOrder(ctx, evt.Symbol, "OCO_PLACED",
		fmt.Sprintf("TP=%s, SL=%s", tp.Round(2), sl.Round(4)), parentID, ocoResp)
	metrics.Executions.WithLabelValues("filled").Inc()
}

func (c *Coordinator) fail(ctx context.Context, symbol string, err error) {
	logger.Errorf("execution for %s failed: %v", symbol, err)
	c.audit.Record(ctx, symbol, "ERROR", "Execution failed: "+err.Error())
	metrics.Executions.WithLabelValues("error").Inc()
}

// SpreadBps is the quoted spread in basis points, rounded down. A zero or
// missing ask yields 0.
func SpreadBps(bid, ask decimal.Decimal) int {
	if ask.Sign() <= 0 || bid.Sign() <= 0 {
		return 0
	}
	bps := ask.Sub(bid).Div(ask).Mul(decTenThousand)
	return int(bps.IntPart())
}
