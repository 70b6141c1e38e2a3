// Package ingest receives raw signal text from any source (Telegram, the
// HTTP API) and turns it into armed price watches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/metrics"
	"github.com/iMOD07/AlpacaTradingBot/internal/settings"
	"github.com/iMOD07/AlpacaTradingBot/internal/signal"
	"github.com/iMOD07/AlpacaTradingBot/internal/trade"
	"github.com/iMOD07/AlpacaTradingBot/internal/watch"
)

// Handler runs the parse chain and arms the resulting watch.
type Handler struct {
	regex    signal.Parser
	ai       signal.Parser
	settings *settings.Service
	coord    *trade.Coordinator
}

func NewHandler(regex, ai signal.Parser, svc *settings.Service, coord *trade.Coordinator) *Handler {
	return &Handler{regex: regex, ai: ai, settings: svc, coord: coord}
}

// OnText parses one message. A text that yields no signal is not an
// error; signal.ErrNoSignal is returned so callers can distinguish
// "nothing to do" from a real failure.
func (h *Handler) OnText(ctx context.Context, text string) (*watch.Handle, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, signal.ErrNoSignal
	}
	cfg, err := h.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings unavailable: %w", err)
	}

	sig, err := h.parse(ctx, cfg, text)
	if err != nil {
		return nil, err
	}
	logger.Infof("signal parsed: %s trigger=%s stop=%s targets=%d",
		sig.Symbol, sig.Trigger, sig.Stop, len(sig.Targets))

	sizer, err := trade.NewSizer(cfg.FixedBudgetUSD, cfg.TakeProfitPercent)
	if err != nil {
		return nil, err
	}
	plan, err := sizer.BuildPlan(sig)
	if err != nil {
		return nil, err
	}
	return h.coord.ArmSignal(ctx, sig, plan, cfg.TakeProfitPercent, cfg.ExtendedHours)
}

// parse runs regex first, AI second. The chain stops at the first parser
// that produces a signal.
func (h *Handler) parse(ctx context.Context, cfg settings.Settings, text string) (*signal.TradeSignal, error) {
	if cfg.RegexEnabled && h.regex != nil {
		sig, err := h.regex.Parse(ctx, text)
		if err == nil {
			metrics.SignalsParsed.WithLabelValues("regex", "hit").Inc()
			return sig, nil
		}
		if !errors.Is(err, signal.ErrNoSignal) {
			return nil, err
		}
		metrics.SignalsParsed.WithLabelValues("regex", "miss").Inc()
	}
	if cfg.AIEnabled && h.ai != nil {
		sig, err := h.ai.Parse(ctx, text)
		if err == nil {
			metrics.SignalsParsed.WithLabelValues("ai", "hit").Inc()
			return sig, nil
		}
		if !errors.Is(err, signal.ErrNoSignal) {
			return nil, err
		}
		metrics.SignalsParsed.WithLabelValues("ai", "miss").Inc()
	}
	return nil, signal.ErrNoSignal
}
