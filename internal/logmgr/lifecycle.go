// Copyright 2025 The Jafka Authors.

package logmgr

import "go.uber.org/zap"

// Startup performs the coordinated startup sequence from §4.7: when
// registry integration is enabled, it registers this broker, enqueues
// every already-loaded topic for publication, and releases the one-shot
// startup barrier gating GetLog/GetOrCreateLog — then, unconditionally, it
// starts the Flush Scheduler.
func (m *Manager) Startup() error {
	if m.cfg.EnableZookeeper {
		if err := m.registryClient.RegisterBroker(); err != nil {
			return err
		}
		for _, topic := range m.reg.allTopics() {
			m.publisher.enqueue(topic)
		}
		m.startupOnce.Do(func() { close(m.startupDone) })
	}

	m.flush.start()
	return nil
}

// Close shuts down the Flush Scheduler (waiting for any in-flight tick),
// closes every Log best-effort, and — when registry integration is
// enabled — stops the publisher and closes the registry client.
func (m *Manager) Close() error {
	m.flush.stop()
	m.retention.stop()

	for _, l := range m.reg.allLogs() {
		if err := l.Close(); err != nil {
			m.logger.Error("failed to close log", zap.String("topic", l.TopicName()), zap.String("dir", l.Dir()), zap.Error(err))
		}
	}

	if m.cfg.EnableZookeeper {
		m.publisher.stop()
		if err := m.registryClient.Close(); err != nil {
			m.logger.Error("failed to close registry client", zap.Error(err))
			return err
		}
	}
	return nil
}
