package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestTradeRecordLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSignal(ctx, "astc", dec("6.36"), dec("5.78")))

	recs, err := s.ListTradeRecords(ctx, "ASTC", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordArmed, recs[0].Status)
	assert.Equal(t, "6.36", recs[0].TriggerPrice)
	assert.Equal(t, "5.78", recs[0].StopPrice)
	assert.Nil(t, recs[0].ClosedAt)

	require.NoError(t, s.RecordEntry(ctx, "ASTC", dec("6.40"), 32, "buy-1"))
	recs, err = s.ListTradeRecords(ctx, "ASTC", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordFilled, recs[0].Status)
	assert.Equal(t, "6.4", recs[0].EntryPrice)
	assert.Equal(t, 32, recs[0].Quantity)
	assert.Equal(t, "buy-1", recs[0].BuyOrderID)

	open, err := s.CountOpenRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	require.NoError(t, s.RecordExit(ctx, "ASTC", dec("6.68"), "TP"))
	recs, err = s.ListTradeRecords(ctx, "ASTC", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordClosedTP, recs[0].Status)
	assert.Equal(t, "6.68", recs[0].ExitPrice)
	assert.Equal(t, "TP", recs[0].ExitReason)
	require.NotNil(t, recs[0].ClosedAt)

	open, err = s.CountOpenRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, open)
}

func TestRecordEntryWithoutArmedRowCreatesOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordEntry(ctx, "NVDA", dec("120.50"), 2, "buy-9"))

	recs, err := s.ListTradeRecords(ctx, "NVDA", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordFilled, recs[0].Status)
	assert.Equal(t, "120.5", recs[0].EntryPrice)
}

func TestRecordExitWithoutOpenRowLeavesTrace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordExit(ctx, "NVDA", dec("110.00"), "SL"))

	recs, err := s.ListTradeRecords(ctx, "NVDA", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, RecordClosedSL, recs[0].Status)
	require.NotNil(t, recs[0].ClosedAt)
}

func TestTradeEventsAppendAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendTradeEvent(ctx, "astc", "ARMED", "Armed trigger at 6.36", "", nil))
	require.NoError(t, s.AppendTradeEvent(ctx, "ASTC", "ENTRY_FILLED", "Bought 32 @ 6.4", "buy-1", []byte(`{"id":"buy-1"}`)))
	require.NoError(t, s.AppendTradeEvent(ctx, "NVDA", "ARMED", "Armed trigger at 120", "", nil))

	events, err := s.ListTradeEvents(ctx, "ASTC", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Newest first.
	assert.Equal(t, "ENTRY_FILLED", events[0].EventType)
	assert.Equal(t, "buy-1", events[0].OrderID)
	assert.JSONEq(t, `{"id":"buy-1"}`, string(events[0].Payload))
	assert.Equal(t, "ARMED", events[1].EventType)

	all, err := s.ListTradeEvents(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	rec := SettingsRecord{
		FixedBudgetUSD:    "200.00",
		TakeProfitPercent: "5.00",
		RegexEnabled:      true,
		AIEnabled:         false,
		ExtendedHours:     true,
		MaxSpreadBps:      50,
	}
	require.NoError(t, s.SaveSettings(ctx, rec))

	got, ok, err := s.GetSettings(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "200.00", got.FixedBudgetUSD)
	assert.Equal(t, "5.00", got.TakeProfitPercent)
	assert.True(t, got.RegexEnabled)
	assert.False(t, got.AIEnabled)
	assert.True(t, got.ExtendedHours)
	assert.Equal(t, 50, got.MaxSpreadBps)

	// Upsert replaces the singleton row.
	rec.FixedBudgetUSD = "300.00"
	rec.AIEnabled = true
	require.NoError(t, s.SaveSettings(ctx, rec))
	got, ok, err = s.GetSettings(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "300.00", got.FixedBudgetUSD)
	assert.True(t, got.AIEnabled)
}
