// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/quantfleet/atrwac/internal/log"
)

// Watcher watches an engine config file and pushes validated reloads to a
// callback. A reload that fails to load or validate keeps the previous
// configuration untouched.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
	apply   func(Engine)
}

// NewWatcher creates a watcher for path. apply is invoked with every
// successfully loaded configuration.
func NewWatcher(path string, apply func(Engine)) *Watcher {
	return &Watcher{
		path:   path,
		logger: xglog.WithComponent("config"),
		apply:  apply,
	}
}

// Start begins watching the config file for changes. An empty path is a
// no-op (configuration comes from ENV only).
func (w *Watcher) Start(ctx context.Context) error {
	if w.path == "" {
		w.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.watcher = watcher

	if err := watcher.Add(w.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config file: %w", err)
	}

	w.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", w.path).
		Msg("watching config file for changes")

	go w.watchLoop(ctx)
	return nil
}

// watchLoop is the main file watcher loop.
func (w *Watcher) watchLoop(ctx context.Context) {
	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Write and Create cover vim, nano, echo and atomic renames.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					w.reload()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().
				Err(err).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().
			Err(err).
			Str("event", "config.auto_reload_failed").
			Msg("automatic config reload failed, keeping previous configuration")
		return
	}
	w.apply(cfg)
	w.logger.Info().
		Str("event", "config.reload_success").
		Str("target", cfg.Target.String()).
		Msg("configuration reloaded")
}
