// Package settings serves the runtime tunable settings with a short read
// cache, so hot paths never hit SQLite per signal while edits through the
// API still land within seconds.
package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iMOD07/AlpacaTradingBot/internal/config"
	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/store"
)

const defaultTTL = 10 * time.Second

// Settings is the parsed runtime configuration.
type Settings struct {
	FixedBudgetUSD    decimal.Decimal
	TakeProfitPercent decimal.Decimal
	RegexEnabled      bool
	AIEnabled         bool
	ExtendedHours     bool
	MaxSpreadBps      int
	UpdatedAt         time.Time
}

type Service struct {
	store *store.Store
	ttl   time.Duration

	mu       sync.Mutex
	cached   Settings
	cachedAt time.Time

	now func() time.Time
}

func NewService(s *store.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{store: s, ttl: ttl, now: time.Now}
}

// Seed writes the settings row from static config when none exists yet.
// An existing row wins so edits survive restarts.
func (s *Service) Seed(ctx context.Context, trade config.TradeConfig, parser config.ParserConfig) error {
	_, ok, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	rec := store.SettingsRecord{
		FixedBudgetUSD:    trade.FixedBudgetUSD,
		TakeProfitPercent: trade.TakeProfitPercent,
		RegexEnabled:      parser.RegexEnabled,
		AIEnabled:         parser.AIEnabled,
		ExtendedHours:     trade.ExtendedHours,
		MaxSpreadBps:      trade.MaxSpreadBps,
	}
	logger.Infof("seeding settings row from config (budget=%s tp=%s%%)", rec.FixedBudgetUSD, rec.TakeProfitPercent)
	return s.store.SaveSettings(ctx, rec)
}

// Get returns the current settings, served from cache within the TTL.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cachedAt.IsZero() && s.now().Sub(s.cachedAt) < s.ttl {
		return s.cached, nil
	}
	rec, ok, err := s.store.GetSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		return Settings{}, fmt.Errorf("settings row missing; database not seeded")
	}
	parsed, err := parseRecord(rec)
	if err != nil {
		return Settings{}, err
	}
	s.cached = parsed
	s.cachedAt = s.now()
	return parsed, nil
}

// Update validates and persists new settings, then drops the cache so the
// next Get observes them immediately.
func (s *Service) Update(ctx context.Context, next Settings) error {
	if next.FixedBudgetUSD.Sign() <= 0 {
		return fmt.Errorf("fixed budget must be > 0")
	}
	if next.TakeProfitPercent.Sign() <= 0 {
		return fmt.Errorf("take-profit percent must be > 0")
	}
	if next.MaxSpreadBps < 0 {
		return fmt.Errorf("max spread bps must be >= 0")
	}
	if !next.RegexEnabled && !next.AIEnabled {
		return fmt.Errorf("at least one parser must stay enabled")
	}
	rec := store.SettingsRecord{
		FixedBudgetUSD:    next.FixedBudgetUSD.String(),
		TakeProfitPercent: next.TakeProfitPercent.String(),
		RegexEnabled:      next.RegexEnabled,
		AIEnabled:         next.AIEnabled,
		ExtendedHours:     next.ExtendedHours,
		MaxSpreadBps:      next.MaxSpreadBps,
	}
	if err := s.store.SaveSettings(ctx, rec); err != nil {
		return err
	}
	s.mu.Lock()
	s.cachedAt = time.Time{}
	s.mu.Unlock()
	return nil
}

func parseRecord(rec store.SettingsRecord) (Settings, error) {
	budget, err := decimal.NewFromString(rec.FixedBudgetUSD)
	if err != nil {
		return Settings{}, fmt.Errorf("stored budget %q unparseable: %w", rec.FixedBudgetUSD, err)
	}
	tp, err := decimal.NewFromString(rec.TakeProfitPercent)
	if err != nil {
		return Settings{}, fmt.Errorf("stored take-profit %q unparseable: %w", rec.TakeProfitPercent, err)
	}
	return Settings{
		FixedBudgetUSD:    budget,
		TakeProfitPercent: tp,
		RegexEnabled:      rec.RegexEnabled,
		AIEnabled:         rec.AIEnabled,
		ExtendedHours:     rec.ExtendedHours,
		MaxSpreadBps:      rec.MaxSpreadBps,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}
