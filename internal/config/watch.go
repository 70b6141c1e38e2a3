package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/iMOD07/AlpacaTradingBot/internal/logger"
)

// WatchLogLevel re-applies app.log_level whenever the config file changes on
// disk, so the level can be bumped to debug without a restart. Errors during
// reload keep the previous level.
func WatchLogLevel(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}
	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					logger.Warnf("config reload skipped: %v", err)
					continue
				}
				logger.SetLevel(cfg.App.LogLevel)
				logger.Infof("config reloaded, log_level=%s", cfg.App.LogLevel)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("config watcher error: %v", err)
			}
		}
	}()
	return nil
}
