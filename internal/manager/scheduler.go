package manager

import (
	"github.com/fleetkeeper/core/internal/config"
)

// defaultHistoryRetention is used when Deps.HistoryRetention is unset.
const defaultHistoryRetention = 50

// scheduleMaintenance registers the cron jobs that keep the data directory
// bounded: pruning old config-history snapshots and sweeping the event log
// for rotation, both of which would otherwise only happen incidentally as a
// side effect of Apply / Record being called.
func (m *Manager) scheduleMaintenance() {
	retention := m.deps.HistoryRetention
	if retention <= 0 {
		retention = defaultHistoryRetention
	}

	_, err := m.cron.AddFunc("@every 1h", func() {
		dataDir := m.store.Current().Config.DataDir
		if dataDir == "" {
			return
		}
		if err := config.PruneHistory(dataDir, retention); err != nil {
			m.log.Warn().Err(err).Msg("config history prune failed")
		}
	})
	if err != nil {
		m.log.Error().Err(err).Msg("failed to register config history prune job")
	}

	if m.deps.EventLog != nil {
		_, err := m.cron.AddFunc("@every 15m", func() {
			if err := m.deps.EventLog.MaybeRotate(); err != nil {
				m.log.Warn().Err(err).Msg("event log rotation sweep failed")
			}
		})
		if err != nil {
			m.log.Error().Err(err).Msg("failed to register event log rotation job")
		}
	}
}
