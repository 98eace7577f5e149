// SPDX-License-Identifier: MIT

// Command atrwacd runs the agentic tuning daemon: the lifecycle engine, its
// operator HTTP API and the optional persistence sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/quantfleet/atrwac/internal/api"
	"github.com/quantfleet/atrwac/internal/audit"
	"github.com/quantfleet/atrwac/internal/cache"
	"github.com/quantfleet/atrwac/internal/config"
	"github.com/quantfleet/atrwac/internal/engine"
	"github.com/quantfleet/atrwac/internal/fleet"
	"github.com/quantfleet/atrwac/internal/health"
	"github.com/quantfleet/atrwac/internal/history"
	xglog "github.com/quantfleet/atrwac/internal/log"
)

var (
	version   = "v0.3.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to engine config file (YAML)")
	listenAddr := flag.String("listen", ":8080", "HTTP listen address")
	dataDir := flag.String("data", "", "data directory for audit and history persistence (empty disables)")
	fleetSize := flag.Int("fleet", 20, "simulated fleet size")
	fleetSeed := flag.Int64("seed", 1, "simulated fleet seed")
	probeRate := flag.Float64("probe-rate", 0, "max metrics probes per second (0 = unlimited)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{Version: version})
	logger := xglog.WithComponent("daemon")

	if err := run(*configPath, *listenAddr, *dataDir, *fleetSize, *fleetSeed, *probeRate); err != nil {
		logger.Fatal().Err(err).Msg("daemon failed")
	}
}

func run(configPath, listenAddr, dataDir string, fleetSize int, fleetSeed int64, probeRate float64) error {
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := health.PerformStartupChecks(health.StartupConfig{
		ListenAddr: listenAddr,
		DataDir:    dataDir,
	}); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err = config.FromEnv(cfg)
	if err != nil {
		return fmt.Errorf("apply env overrides: %w", err)
	}

	sim := fleet.NewSimulated(fleetSize, fleetSeed)

	opts := []engine.Option{}
	if probeRate > 0 {
		opts = append(opts, engine.WithProbeRate(probeRate))
	}

	// Optional persistence: badger for the audit trail, SQLite for score
	// history. Both are skipped without a data directory.
	var auditStore *audit.Store
	var archive *history.Archive
	if dataDir != "" {
		auditStore, err = audit.OpenStore(filepath.Join(dataDir, "audit"))
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer func() { _ = auditStore.Close() }()

		if replayed, err := auditStore.Replay(); err != nil {
			logger.Warn().Err(err).Msg("audit replay failed")
		} else {
			logger.Info().Int("records", len(replayed)).Msg("audit trail replayed")
		}

		archive, err = history.Open(filepath.Join(dataDir, "scores.db"))
		if err != nil {
			return fmt.Errorf("open score archive: %w", err)
		}
		defer func() { _ = archive.Close() }()

		opts = append(opts, engine.WithRecorder(auditStore), engine.WithArchiver(archive))
	}

	// Optional rankings publisher for UI peers.
	var publisher *cache.Publisher
	if addr := config.ParseString("ATRWAC_REDIS_ADDR", ""); addr != "" {
		publisher, err = cache.NewPublisher(cache.Config{
			Addr:     addr,
			Password: config.ParseString("ATRWAC_REDIS_PASSWORD", ""),
			TTL:      config.ParseDuration("ATRWAC_REDIS_TTL", 10*time.Minute),
		}, xglog.WithComponent("cache"))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = publisher.Close() }()

		opts = append(opts, engine.WithTickHook(func(status engine.StatusSnapshot, rankings []engine.AgentScore) {
			publisher.Publish(cache.StatusKey, status)
			publisher.Publish(cache.RankingsKey, rankings)
		}))
	}

	eng, err := engine.New(cfg, sim.Source(), sim.Stop(), sim.Delete(), opts...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	if cfg.Enabled {
		if err := eng.Start(ctx); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		defer eng.Stop()
	} else {
		logger.Warn().Msg("engine disabled by configuration, serving API only")
	}

	watcher := config.NewWatcher(configPath, func(next config.Engine) {
		if err := eng.ReplaceConfig(next); err != nil {
			logger.Error().Err(err).Msg("config reload rejected")
		}
	})
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewEngineChecker(eng.Running))
	hm.RegisterChecker(health.NewLastTickChecker(func() (time.Time, time.Duration) {
		status := eng.Status()
		var last time.Time
		if status.LastEvaluation != nil {
			last = *status.LastEvaluation
		}
		return last, eng.Config().EvaluationInterval
	}))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           otelhttp.NewHandler(api.New(eng, hm, version).Router(), "atrwacd"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("event", "daemon.listening").
			Str("addr", listenAddr).
			Str("version", version).
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Str("event", "daemon.stopped").Msg("daemon shut down cleanly")
	return nil
}
