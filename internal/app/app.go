// Package app wires configuration, storage, the brokerage client and the
// long-running services into one runnable unit.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iMOD07/AlpacaTradingBot/internal/audit"
	"github.com/iMOD07/AlpacaTradingBot/internal/broker/alpaca"
	"github.com/iMOD07/AlpacaTradingBot/internal/config"
	"github.com/iMOD07/AlpacaTradingBot/internal/ingest"
	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
	"github.com/iMOD07/AlpacaTradingBot/internal/settings"
	"github.com/iMOD07/AlpacaTradingBot/internal/signal"
	aisignal "github.com/iMOD07/AlpacaTradingBot/internal/signal/ai"
	"github.com/iMOD07/AlpacaTradingBot/internal/store"
	"github.com/iMOD07/AlpacaTradingBot/internal/trade"
	apihttp "github.com/iMOD07/AlpacaTradingBot/internal/transport/http"
	"github.com/iMOD07/AlpacaTradingBot/internal/watch"
)

// App owns the built services and their shared resources.
type App struct {
	cfg *config.Config

	store      *store.Store
	watcher    *watch.Watcher
	reconciler *trade.Reconciler
	apiServer  *apihttp.Server
	telegram   *ingest.TelegramPoller
}

// New builds the application from config without starting anything.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	settingsSvc := settings.NewService(st, 0)
	if err := settingsSvc.Seed(context.Background(), cfg.Trade, cfg.Parser); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seed settings: %w", err)
	}

	broker, err := alpaca.NewClient(cfg.Alpaca)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("build broker client: %w", err)
	}

	pollInterval := time.Duration(cfg.Watcher.PollIntervalMS) * time.Millisecond
	watchTimeout := time.Duration(cfg.Watcher.TimeoutMinutes) * time.Minute
	watcher := watch.NewWatcher(broker, pollInterval, watchTimeout)

	coord := trade.NewCoordinator(broker, watcher, audit.NewSink(st), st, trade.CoordinatorConfig{
		PollInterval:      pollInterval,
		WatchTimeout:      watchTimeout,
		MaxSpreadBps:      cfg.Trade.MaxSpreadBps,
		ShiftStopWithFill: cfg.Trade.ShiftStopWithFill,
	})

	reconciler := trade.NewReconciler(broker, st,
		time.Duration(cfg.Reconciler.PollSeconds)*time.Second,
		time.Duration(cfg.Reconciler.LookbackMinutes)*time.Minute)

	var aiParser signal.Parser
	if cfg.Parser.AIEnabled {
		aiParser = aisignal.NewParser(
			cfg.Parser.AI.APIURL,
			cfg.Parser.AI.APIKey,
			cfg.Parser.AI.Model,
			time.Duration(cfg.Parser.AI.TimeoutSeconds)*time.Second)
	}
	handler := ingest.NewHandler(signal.NewExtractor(), aiParser, settingsSvc, coord)

	apiServer, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Settings: settingsSvc,
		Ingest:   handler,
		Store:    st,
		Watcher:  watcher,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("build api server: %w", err)
	}

	app := &App{
		cfg:        cfg,
		store:      st,
		watcher:    watcher,
		reconciler: reconciler,
		apiServer:  apiServer,
	}
	if cfg.Telegram.Enabled {
		app.telegram = ingest.NewTelegramPoller(cfg.Telegram, handler)
	}
	return app, nil
}

// Run starts every service and blocks until ctx is cancelled or one of
// them fails. Shared resources are torn down on the way out.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("starting trading bot (env=%s broker=%s)", a.cfg.App.Env, a.cfg.Alpaca.BaseURL)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.apiServer.Start(ctx); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		a.reconciler.Run(ctx)
		return nil
	})

	if a.telegram != nil {
		group.Go(func() error {
			a.telegram.Run(ctx)
			return nil
		})
	}

	err := group.Wait()
	a.watcher.Shutdown()
	if cerr := a.store.Close(); cerr != nil {
		logger.Errorf("store close failed: %v", cerr)
	}
	return err
}
