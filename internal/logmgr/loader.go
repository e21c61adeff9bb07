// Copyright 2025 The Jafka Authors.

package logmgr

import (
	"os"

	"go.uber.org/zap"
)

// Load performs the one-time startup scan described in §4.2: it ensures
// LogDir exists, reconstructs the registry from every well-formed
// subdirectory found there, installs the retention task, and — if registry
// integration is enabled — starts the registry client and the publisher
// worker. Load may be called at most once per Manager.
func (m *Manager) Load() error {
	m.mu.Lock()
	if m.loaded {
		m.mu.Unlock()
		return nil
	}
	m.loaded = true
	m.mu.Unlock()

	if err := m.ensureLogDir(); err != nil {
		return err
	}

	entries, err := os.ReadDir(m.cfg.LogDir)
	if err != nil {
		return &ConfigError{Path: m.cfg.LogDir, Reason: err.Error()}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			m.logger.Warn("skipping non-directory entry in log dir", zap.String("name", entry.Name()))
			continue
		}
		topic, partition, ok := parseDirName(entry.Name())
		if !ok {
			m.logger.Warn("skipping directory with unparseable name", zap.String("name", entry.Name()))
			continue
		}

		log, err := m.newLog(topic, partition, true)
		if err != nil {
			m.logger.Warn("failed to recover log, skipping",
				zap.String("topic", topic), zap.Int("partition", partition), zap.Error(err))
			continue
		}
		m.reg.insert(topic, partition, log)
	}

	m.metrics.SetRegistrySize(len(m.reg.allLogs()))
	m.retention.start()

	if m.cfg.EnableZookeeper {
		if err := m.registryClient.Start(); err != nil {
			return &ConfigError{Path: m.cfg.LogDir, Reason: "registry client start: " + err.Error()}
		}
		m.publisher.start()
	}

	return nil
}
