// Package watch manages armed price-trigger jobs: poll a symbol's last
// trade price until it crosses a trigger, then notify exactly once.
package watch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/metrics"
)

const minPollInterval = 100 * time.Millisecond

// PriceSource reads the latest trade price for a symbol.
type PriceSource interface {
	GetLastTradePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PriceSourceFunc adapts a plain function to a PriceSource.
type PriceSourceFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

func (f PriceSourceFunc) GetLastTradePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f(ctx, symbol)
}

// TriggerEvent is handed to the callback when the price crosses the trigger.
type TriggerEvent struct {
	Symbol    string
	Trigger   decimal.Decimal
	LastPrice decimal.Decimal
	CrossedAt time.Time
}

// Callback receives the one-shot cross notification.
type Callback func(TriggerEvent)

type watchEntry struct {
	id        string
	key       string
	symbol    string
	trigger   decimal.Decimal
	expiresAt time.Time
	callback  Callback
	stopCh    chan struct{}
	stopOnce  sync.Once
	backstop  *time.Timer
}

func (e *watchEntry) stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Handle identifies an armed watch and allows cancelling it.
type Handle struct {
	entry *watchEntry
	w     *Watcher
}

func (h *Handle) ID() string  { return h.entry.id }
func (h *Handle) Key() string { return h.entry.key }
func (h *Handle) Cancel()     { h.w.cancelKey(h.entry.key, h.entry) }

func (h *Handle) Active() bool {
	cur, ok := h.w.active.Load(h.entry.key)
	return ok && cur == h.entry
}

// Watcher owns the registry of armed watches. The registry supports atomic
// insert-if-absent (deduplication) and remove-and-return (at-most-once
// firing); no lock is held across network calls, so one slow symbol never
// delays another.
type Watcher struct {
	prices PriceSource

	active sync.Map // key -> *watchEntry
	byID   sync.Map // id  -> key

	defaultPoll    time.Duration
	defaultTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	now func() time.Time
}

func NewWatcher(prices PriceSource, defaultPoll, defaultTimeout time.Duration) *Watcher {
	if defaultPoll <= 0 {
		defaultPoll = time.Second
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		prices:         prices,
		defaultPoll:    defaultPoll,
		defaultTimeout: defaultTimeout,
		ctx:            ctx,
		cancel:         cancel,
		now:            time.Now,
	}
}

// Key builds the uniqueness boundary for a watch: upper-cased symbol plus
// the trigger rounded to 6 decimals.
func Key(symbol string, trigger decimal.Decimal) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "|" + trigger.Round(6).String()
}

// Arm schedules a recurring price poll for symbol until the price reaches
// trigger or the timeout passes. Arming an already-armed key returns the
// existing handle; this deduplication is policy, not an error.
func (w *Watcher) Arm(symbol string, trigger decimal.Decimal, pollEvery, timeout time.Duration, onCross Callback) (*Handle, error) {
	if onCross == nil {
		return nil, fmt.Errorf("onCross callback is required")
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if trigger.Sign() <= 0 {
		return nil, fmt.Errorf("trigger must be > 0")
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, fmt.Errorf("watcher is shut down")
	}
	w.mu.Unlock()

	if pollEvery <= 0 {
		pollEvery = w.defaultPoll
	}
	if pollEvery < minPollInterval {
		pollEvery = minPollInterval
	}
	if timeout <= 0 {
		timeout = w.defaultTimeout
	}

	trg := trigger.Round(6)
	key := Key(sym, trg)
	entry := &watchEntry{
		id:        uuid.NewString(),
		key:       key,
		symbol:    sym,
		trigger:   trg,
		expiresAt: w.now().Add(timeout),
		callback:  onCross,
		stopCh:    make(chan struct{}),
	}

	// Backstop expiry independent of the poll loop, so scheduler drift
	// cannot keep a dead watch armed. The entry must be fully initialized
	// and registered with the WaitGroup before it is published, so a
	// concurrent Shutdown that retires it immediately sees the backstop
	// and waits for the poll goroutine.
	entry.backstop = time.AfterFunc(timeout, func() {
		w.expire(entry)
	})
	w.wg.Add(1)

	if existing, loaded := w.active.LoadOrStore(key, entry); loaded {
		entry.backstop.Stop()
		w.wg.Done()
		prev := existing.(*watchEntry)
		logger.Warnf("watch already active for %s", key)
		return &Handle{entry: prev, w: w}, nil
	}
	w.byID.Store(entry.id, key)
	metrics.ArmedWatches.Inc()
	go w.pollLoop(entry, pollEvery)

	logger.Infof("armed trigger %s @ %s (poll=%s timeout=%s id=%s)", sym, trg, pollEvery, timeout, entry.id)
	return &Handle{entry: entry, w: w}, nil
}

// Cancel cancels a watch by id. Unknown or already-terminal ids are a no-op.
func (w *Watcher) Cancel(id string) {
	keyVal, ok := w.byID.Load(id)
	if !ok {
		return
	}
	key := keyVal.(string)
	if cur, ok := w.active.Load(key); ok {
		entry := cur.(*watchEntry)
		if entry.id == id {
			w.cancelKey(key, entry)
		}
	}
}

// Shutdown cancels all active watches and stops the polling substrate.
// In-flight polls finish their current tick; callbacks already dispatched
// are abandoned. Cancellation never produces a cross event.
func (w *Watcher) Shutdown() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	logger.Infof("stopping trigger watcher")
	w.active.Range(func(key, val any) bool {
		w.cancelKey(key.(string), val.(*watchEntry))
		return true
	})
	w.cancel()
	w.wg.Wait()
}

// ActiveCount reports the number of currently armed watches.
func (w *Watcher) ActiveCount() int {
	n := 0
	w.active.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

func (w *Watcher) pollLoop(entry *watchEntry, pollEvery time.Duration) {
	defer w.wg.Done()
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		if w.tick(entry) {
			return
		}
		select {
		case <-entry.stopCh:
			return
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one poll cycle and reports whether the watch is terminal.
// Expiry is checked before any price read.
func (w *Watcher) tick(entry *watchEntry) bool {
	if w.now().After(entry.expiresAt) {
		w.expire(entry)
		return true
	}

	price, err := w.prices.GetLastTradePrice(w.ctx, entry.symbol)
	if err != nil {
		logger.Errorf("polling error for %s: %v", entry.symbol, err)
		return false
	}
	if price.Cmp(entry.trigger) < 0 {
		return false
	}

	// First remover wins: a miss here means another path (cancel, expiry,
	// concurrent tick) already consumed the watch, so this tick is a no-op.
	cur, ok := w.active.LoadAndDelete(entry.key)
	if !ok || cur != entry {
		return true
	}
	w.retire(entry, "fired")

	evt := TriggerEvent{
		Symbol:    entry.symbol,
		Trigger:   entry.trigger,
		LastPrice: price,
		CrossedAt: w.now(),
	}
	// The callback runs on its own goroutine; the poll substrate is never
	// blocked by callback execution, and a callback panic is contained.
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("onCross callback panic for %s: %v", entry.symbol, r)
			}
		}()
		entry.callback(evt)
	}()
	logger.Infof("trigger fired %s @ %s (last=%s)", entry.symbol, entry.trigger, evt.LastPrice)
	return true
}

func (w *Watcher) expire(entry *watchEntry) {
	cur, ok := w.active.LoadAndDelete(entry.key)
	if !ok || cur != entry {
		return
	}
	w.retire(entry, "expired")
	logger.Infof("watch timed out for %s", entry.key)
}

func (w *Watcher) cancelKey(key string, entry *watchEntry) {
	cur, ok := w.active.LoadAndDelete(key)
	if !ok || cur != entry {
		return
	}
	w.retire(entry, "cancelled")
	logger.Infof("watch cancelled for %s", key)
}

// retire finalizes a consumed entry: stops its poll loop and backstop and
// updates bookkeeping. Callers must have removed it from the active set.
func (w *Watcher) retire(entry *watchEntry, outcome string) {
	entry.stop()
	if entry.backstop != nil {
		entry.backstop.Stop()
	}
	w.byID.Delete(entry.id)
	metrics.ArmedWatches.Dec()
	metrics.WatchOutcomes.WithLabelValues(outcome).Inc()
}
