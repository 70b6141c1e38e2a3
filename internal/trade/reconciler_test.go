package trade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iMOD07/AlpacaTradingBot/internal/broker/alpaca"
)

func TestSweepRecordsNewExitsOnce(t *testing.T) {
	broker := &fakeBroker{
		orders: []alpaca.Order{
			{ID: "s1", Symbol: "ASTC", Side: "sell", Type: "limit", Status: "filled", FilledAvgPrice: "6.68"},
			{ID: "s2", Symbol: "NVDA", Side: "sell", Type: "stop", Status: "filled", FilledAvgPrice: "120.50"},
		},
	}
	records := &memRecords{}
	r := NewReconciler(broker, records, time.Second, time.Hour)

	r.Sweep(context.Background())
	// A second pass over the same listing adds nothing.
	r.Sweep(context.Background())

	require.Len(t, records.exits, 2)
	assert.Equal(t, "ASTC", records.exits[0].symbol)
	assert.Equal(t, ExitTakeProfit, records.exits[0].reason)
	assert.Equal(t, "6.68", records.exits[0].price.String())
	assert.Equal(t, "NVDA", records.exits[1].symbol)
	assert.Equal(t, ExitStopLoss, records.exits[1].reason)
	assert.Equal(t, 2, broker.listCalls)
}

func TestSweepSkipsUnusableOrders(t *testing.T) {
	broker := &fakeBroker{
		orders: []alpaca.Order{
			{ID: "", Symbol: "ASTC", Side: "sell", Type: "limit", FilledAvgPrice: "6.68"},
			{ID: "s1", Symbol: "", Side: "sell", Type: "limit", FilledAvgPrice: "6.68"},
			{ID: "s2", Symbol: "ASTC", Side: "buy", Type: "limit", FilledAvgPrice: "6.68"},
			{ID: "s3", Symbol: "ASTC", Side: "sell", Type: "limit", FilledAvgPrice: ""},
			{ID: "s4", Symbol: "ASTC", Side: "sell", Type: "limit", FilledAvgPrice: "n/a"},
			{ID: "s5", Symbol: "ASTC", Side: "sell", Type: "limit", FilledAvgPrice: "6.68"},
		},
	}
	records := &memRecords{}
	r := NewReconciler(broker, records, time.Second, time.Hour)

	r.Sweep(context.Background())

	require.Len(t, records.exits, 1)
	assert.Equal(t, "ASTC", records.exits[0].symbol)
}

func TestSweepListFailureIsNonFatal(t *testing.T) {
	broker := &fakeBroker{ordersErr: alpaca.ErrUnreachable}
	records := &memRecords{}
	r := NewReconciler(broker, records, time.Second, time.Hour)

	r.Sweep(context.Background())

	assert.Empty(t, records.exits)

	// Once the brokerage answers again the sweep picks up where it left off.
	broker.ordersErr = nil
	broker.orders = []alpaca.Order{
		{ID: "s1", Symbol: "ASTC", Side: "sell", Type: "limit", FilledAvgPrice: "6.68"},
	}
	r.Sweep(context.Background())
	assert.Len(t, records.exits, 1)
}

func TestSeenSetPrunesBeyondTwiceLookback(t *testing.T) {
	broker := &fakeBroker{
		orders: []alpaca.Order{
			{ID: "s1", Symbol: "ASTC", Side: "sell", Type: "limit", FilledAvgPrice: "6.68"},
		},
	}
	records := &memRecords{}
	r := NewReconciler(broker, records, time.Second, time.Hour)

	base := time.Now()
	r.now = func() time.Time { return base }
	r.Sweep(context.Background())
	require.Len(t, records.exits, 1)

	// Inside the retention window the id is still deduplicated.
	r.now = func() time.Time { return base.Add(90 * time.Minute) }
	r.Sweep(context.Background())
	assert.Len(t, records.exits, 1)

	// Past twice the lookback the id has been dropped, so a reappearing
	// order would be recorded again. That is acceptable: listings never
	// reach that far back.
	r.now = func() time.Time { return base.Add(3 * time.Hour) }
	r.Sweep(context.Background())
	r.Sweep(context.Background())
	assert.Len(t, records.exits, 2)
}

func TestClassifyExit(t *testing.T) {
	assert.Equal(t, ExitTakeProfit, ClassifyExit("limit"))
	assert.Equal(t, ExitTakeProfit, ClassifyExit("LIMIT"))
	assert.Equal(t, ExitStopLoss, ClassifyExit("stop"))
	assert.Equal(t, ExitStopLoss, ClassifyExit("stop_limit"))
	assert.Equal(t, ExitStopLoss, ClassifyExit("trailing_stop"))
	assert.Equal(t, ExitTakeProfit, ClassifyExit("market"))
	assert.Equal(t, ExitTakeProfit, ClassifyExit(""))
}

func TestRunStopsWithContext(t *testing.T) {
	broker := &fakeBroker{}
	r := NewReconciler(broker, &memRecords{}, 5*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		broker.mu.Lock()
		defer broker.mu.Unlock()
		return broker.listCalls >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
