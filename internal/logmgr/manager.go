// Copyright 2025 The Jafka Authors.

package logmgr

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jafka-project/jafka/internal/registryclient"
	"go.uber.org/zap"
)

// LogFactory constructs the concrete Log implementation backing directory
// dir for (topic, partition). recover instructs the factory to repair a
// truncated tail / inconsistent index rather than trust the files as-is.
type LogFactory func(dir string, topic string, partition int, recover bool) (Log, error)

// Config mirrors the recognized options in the external configuration
// (§6): every field here is read once at construction and never mutated on
// the produce/fetch path.
type Config struct {
	LogDir                   string
	NumPartitions            int
	TopicPartitionsMap       map[string]int
	FlushSchedulerThreadRate time.Duration
	DefaultFlushIntervalMs   int64
	FlushIntervalMap         map[string]int64
	// FlushIntervalMessages, when > 0, is passed through to the Log
	// implementation as a message-count flush trigger: an additional,
	// Log-internal durability sync every N appended records, independent of
	// the time-based FlushSchedulerThreadRate tick.
	FlushIntervalMessages int
	LogCleanupIntervalMs     time.Duration
	LogCleanupDefaultAgeMs   int64
	LogRetentionHoursMap     map[string]int64
	LogRetentionSize         int64
	LogFileSize              int64
	EnableZookeeper          bool
}

// Manager is the Log Manager core: it owns the log registry, the flush
// scheduler, the retention engine, the partition chooser, and (when
// registry integration is enabled) the registry publisher and startup
// barrier.
type Manager struct {
	cfg     Config
	factory LogFactory
	logger  *zap.Logger
	metrics *Metrics

	reg *registry

	rollingMu sync.Mutex
	rolling   RollingStrategy

	rng   *rand.Rand
	rngMu sync.Mutex

	flush     *flushScheduler
	retention *retentionEngine
	publisher *publisher

	registryClient RegistryClient

	startupOnce sync.Once
	startupDone chan struct{}

	loaded bool
	mu     sync.Mutex // guards loaded
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithLogger injects the zap logger used by the manager's background
// workers (flush scheduler, retention engine, registry publisher).
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics injects a Metrics sink; a nil-registerer Metrics is used if
// this option is omitted.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithRegistryClient injects the external registry collaborator.
// registryclient.Noop is used if this option is omitted.
func WithRegistryClient(c RegistryClient) Option {
	return func(m *Manager) {
		if c != nil {
			m.registryClient = c
		}
	}
}

// NewManager constructs a Manager. factory must be non-nil; it is how the
// manager builds the concrete Log implementation it otherwise treats as
// opaque.
func NewManager(cfg Config, factory LogFactory, opts ...Option) *Manager {
	logger, _ := zap.NewProduction()
	m := &Manager{
		cfg:            cfg,
		factory:        factory,
		logger:         logger,
		metrics:        NewMetrics(nil),
		reg:            newRegistry(),
		rolling:        NewFixedSizeRollingStrategy(cfg.LogFileSize),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		registryClient: registryclient.Noop{},
		startupDone:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.flush = newFlushScheduler(m)
	m.retention = newRetentionEngine(m)
	m.publisher = newPublisher(m)

	if !cfg.EnableZookeeper {
		close(m.startupDone)
	}
	return m
}

// SetRollingStrategy installs the strategy consulted by Log instances the
// manager constructs; the default FixedSizeRollingStrategy(LogFileSize) is
// used otherwise. Logs whose factory reads RollingStrategy on each append
// (as logstore's StrategyProvider does) pick up the new strategy on their
// next append, including logs recovered by an earlier Load.
func (m *Manager) SetRollingStrategy(s RollingStrategy) {
	m.rollingMu.Lock()
	defer m.rollingMu.Unlock()
	if s != nil {
		m.rolling = s
	}
}

// RollingStrategy returns the strategy currently installed, consulted by
// the concrete Log implementation the manager's factory constructs.
func (m *Manager) RollingStrategy() RollingStrategy {
	m.rollingMu.Lock()
	defer m.rollingMu.Unlock()
	return m.rolling
}

// partitionCount returns P(topic): the per-topic override if present, else
// NumPartitions.
func (m *Manager) partitionCount(topic string) int {
	if n, ok := m.cfg.TopicPartitionsMap[topic]; ok {
		return n
	}
	return m.cfg.NumPartitions
}

func (m *Manager) checkPartitionBounds(topic string, partition int) error {
	if topic == "" {
		return &InvalidPartition{Topic: topic, Partition: partition}
	}
	bound := m.partitionCount(topic)
	if partition < 0 || partition >= bound {
		return &InvalidPartition{Topic: topic, Partition: partition, Bound: bound}
	}
	return nil
}

// awaitStartup blocks until the one-shot startup barrier is released. A
// no-op when registry integration is disabled.
func (m *Manager) awaitStartup() {
	<-m.startupDone
}

// GetLog returns the existing Log for (topic, partition), or nil if absent.
// Validates partition bounds first, returning *InvalidPartition on
// violation, before ever touching the registry or waiting on the startup
// barrier.
func (m *Manager) GetLog(topic string, partition int) (Log, error) {
	if err := m.checkPartitionBounds(topic, partition); err != nil {
		return nil, err
	}
	m.awaitStartup()
	l, _ := m.reg.get(topic, partition)
	return l, nil
}

// GetOrCreateLog returns the existing Log for (topic, partition) or
// constructs one, following the two-phase insert-if-absent protocol in
// §4.1. Concurrent callers for the same (topic, partition) always observe
// the identical Log instance; at most one is actually constructed.
func (m *Manager) GetOrCreateLog(topic string, partition int) (Log, error) {
	if err := m.checkPartitionBounds(topic, partition); err != nil {
		return nil, err
	}
	m.awaitStartup()

	pm, firstEverTopic := m.reg.getOrCreateTopic(topic)

	if existing, ok := pm.get(partition); ok {
		return existing, nil
	}

	// Re-check, construct and insert under the process-wide creation mutex:
	// only Log construction (and the directory creation it implies) plus the
	// slot insert are guarded, not I/O on already-registered logs.
	m.reg.creationMu.Lock()
	if existing, ok := pm.get(partition); ok {
		m.reg.creationMu.Unlock()
		return existing, nil
	}
	draft, err := m.newLog(topic, partition, false)
	if err != nil {
		m.reg.creationMu.Unlock()
		return nil, err
	}
	winner, inserted := pm.getOrInsert(partition, draft)
	m.reg.creationMu.Unlock()
	if !inserted {
		// The slot was filled outside the creation mutex: close the draft
		// silently, discarding its partial state, and return the winner.
		_ = draft.Close()
		return winner, nil
	}

	if firstEverTopic {
		m.publisher.enqueue(topic)
	}
	m.metrics.SetRegistrySize(len(m.reg.allLogs()))
	return winner, nil
}

func (m *Manager) newLog(topic string, partition int, recover bool) (Log, error) {
	dir := filepath.Join(m.cfg.LogDir, dirName(topic, partition))
	return m.factory(dir, topic, partition, recover)
}

func dirName(topic string, partition int) string {
	return fmt.Sprintf("%s-%d", topic, partition)
}

// parseDirName splits name on its rightmost '-', treating the right side as
// a decimal, non-negative partition index and the left side as the topic.
// Names whose right side is not such a decimal are rejected.
func parseDirName(name string) (topic string, partition int, ok bool) {
	idx := strings.LastIndex(name, "-")
	if idx <= 0 || idx == len(name)-1 {
		return "", 0, false
	}
	topic = name[:idx]
	rest := name[idx+1:]
	p, err := strconv.Atoi(rest)
	if err != nil || p < 0 || strings.HasPrefix(rest, "+") {
		return "", 0, false
	}
	return topic, p, true
}

// AllTopics enumerates every topic currently in the registry.
func (m *Manager) AllTopics() []string {
	return m.reg.allTopics()
}

// AllLogs yields every Log across all partitions.
func (m *Manager) AllLogs() []Log {
	return m.reg.allLogs()
}

// ChoosePartition returns a uniformly-random partition index in
// [0, P(topic)).
func (m *Manager) ChoosePartition(topic string) int {
	bound := m.partitionCount(topic)
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.rng.Intn(bound)
}

// GetOffsets answers an offset lookup request for (topic, partition),
// returning the empty-offsets default if the log does not exist.
func (m *Manager) GetOffsets(topic string, partition int, req OffsetRequest) ([]int64, error) {
	l, err := m.GetLog(topic, partition)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return GetEmptyOffsets(), nil
	}
	return l.GetOffsetsBefore(req), nil
}

// GetTopicPartitionsMap returns, for every loaded topic, its effective
// partition count.
func (m *Manager) GetTopicPartitionsMap() map[string]int {
	out := make(map[string]int)
	for _, t := range m.reg.allTopics() {
		out[t] = m.partitionCount(t)
	}
	return out
}

// ensureLogDir implements step 1 of Load: create LogDir if absent, or fail
// with *ConfigError if it exists but is not a readable directory.
func (m *Manager) ensureLogDir() error {
	info, err := os.Stat(m.cfg.LogDir)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(m.cfg.LogDir, 0755); mkErr != nil {
			return &ConfigError{Path: m.cfg.LogDir, Reason: mkErr.Error()}
		}
		return nil
	}
	if err != nil {
		return &ConfigError{Path: m.cfg.LogDir, Reason: err.Error()}
	}
	if !info.IsDir() {
		return &ConfigError{Path: m.cfg.LogDir, Reason: "not a directory"}
	}
	entries, err := os.ReadDir(m.cfg.LogDir)
	if err != nil {
		return &ConfigError{Path: m.cfg.LogDir, Reason: "not readable: " + err.Error()}
	}
	_ = entries
	return nil
}
