// Package main is the entry point for fleet-adapter, the HTTP/WebSocket
// gateway that exposes a running fleetd's status and control surface to
// external tools (dashboards, CI hooks, the fleet-top TUI) without those
// tools needing direct access to the manager's in-process API.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetkeeper/core/internal/adapter"
	"github.com/fleetkeeper/core/internal/agent"
	"github.com/fleetkeeper/core/internal/config"
	"github.com/fleetkeeper/core/internal/events"
	"github.com/fleetkeeper/core/internal/health"
	"github.com/fleetkeeper/core/internal/manager"
	"github.com/fleetkeeper/core/internal/resources"
	"github.com/fleetkeeper/core/pkg/logger"
)

func main() {
	var (
		configPathFlag string
		dataDirFlag    string
		addrFlag       string
	)
	flag.StringVar(&configPathFlag, "config", "", "path to the fleet configuration file (overrides FLEET_CONFIG_PATH)")
	flag.StringVar(&dataDirFlag, "data-dir", "", "data directory for history, event log, and backups (overrides FLEET_DATA_DIR)")
	flag.StringVar(&addrFlag, "addr", ":8080", "address to listen on")
	flag.Parse()

	log := logger.New(logger.Config{Level: os.Getenv("FLEET_LOG_LEVEL"), Pretty: true})
	log.Info().Msg("starting fleet-adapter")

	dataDir := config.ResolveDataDir(dataDirFlag)
	cfg, err := config.Load(config.LoadOptions{ConfigPath: configPathFlag, DataDir: dataDir})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load fleet configuration")
	}

	bus := events.NewBus(log)
	em := events.NewManager(bus, log)

	eventLog, err := events.NewLog(dataDir, 64<<20, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open event log")
	}
	defer eventLog.Close()
	events.SubscribeAll(bus, eventLog.HandleEvent)

	store := config.NewStore(cfg, dataDir, em, log)

	m := manager.New(store, manager.Deps{
		Spawner:  agent.NewUnixSpawner(),
		Prober:   health.NewHTTPProber(),
		Sampler:  resources.NewProcessSampler(),
		Clock:    agent.RealClock{},
		Events:   em,
		EventLog: eventLog,
		Log:      log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start fleet")
	}
	log.Info().Int("agent_count", len(cfg.Agents)).Msg("fleet started")

	srv := &http.Server{
		Addr:    addrFlag,
		Handler: adapter.New(m, store, bus, log).Router(),
	}

	go func() {
		log.Info().Str("addr", addrFlag).Msg("fleet-adapter listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("fleet-adapter server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down fleet-adapter")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("adapter http server shutdown reported an error")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := m.Stop(stopCtx); err != nil && stopCtx.Err() == nil {
		log.Error().Err(err).Msg("fleet shutdown reported an error")
	}

	log.Info().Msg("fleet-adapter stopped")
}
