// Package main is the entry point for fleetd, the Agent Orchestration Core
// daemon: it loads a fleet configuration, spawns and supervises every
// configured agent, and keeps running until told to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	)
	flag.StringVar(&configPathFlag, "config", "", "path to the fleet configuration file (overrides FLEET_CONFIG_PATH)")
	flag.StringVar(&dataDirFlag, "data-dir", "", "data directory for history, event log, and backups (overrides FLEET_DATA_DIR)")
	flag.Parse()

	log := logger.New(logger.Config{Level: os.Getenv("FLEET_LOG_LEVEL"), Pretty: true})
	log.Info().Msg("starting fleetd")

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down fleetd")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := m.Stop(stopCtx); err != nil && stopCtx.Err() == nil {
		log.Error().Err(err).Msg("fleet shutdown reported an error")
	}

	log.Info().Msg("fleetd stopped")
}
