// Copyright 2025 The Jafka Authors.

package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	LogManager LogManagerConfig `koanf:"log_manager"`
	Registry   RegistryConfig   `koanf:"registry"`
	Logging    LoggingConfig    `koanf:"logging"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// LogManagerConfig holds every option the log manager recognizes.
type LogManagerConfig struct {
	LogDir                   string         `koanf:"log.dir"`
	NumPartitions            int            `koanf:"num.partitions"`
	TopicPartitionsMap       map[string]int `koanf:"topic.partitions.map"`
	FlushInterval            int            `koanf:"flush.interval"`
	FlushSchedulerThreadRate int            `koanf:"flush.scheduler.thread.rate.ms"`
	DefaultFlushIntervalMs   int64          `koanf:"default.flush.interval.ms"`
	FlushIntervalMap         map[string]int `koanf:"flush.interval.map"`
	LogCleanupIntervalMs     int            `koanf:"log.cleanup.interval.ms"`
	LogCleanupDefaultAgeMs   int64          `koanf:"log.cleanup.default.age.ms"`
	LogRetentionHoursMap     map[string]int `koanf:"log.retention.hours.map"`
	LogRetentionSize         int64          `koanf:"log.retention.size"`
	LogFileSize              int64          `koanf:"log.file.size"`
	SegmentCodec             string         `koanf:"segment.codec"` // none, gzip, snappy, lz4, zstd
	EnableZookeeper          bool           `koanf:"enable.zookeeper"`
}

// RegistryConfig holds connection settings for the external registry,
// consulted only when LogManagerConfig.EnableZookeeper is true.
type RegistryConfig struct {
	URL       string `koanf:"url"`
	BrokerID  int    `koanf:"broker.id"`
	TimeoutMs int    `koanf:"timeout.ms"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	Path    string `koanf:"path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		slog.Info("loaded config from file", "path", configPath)
	}

	if err := k.Load(env.Provider("JAFKA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "JAFKA_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.LogManager.LogDir == "" {
		cfg.LogManager.LogDir = "/tmp/jafka-logs"
	}
	if cfg.LogManager.NumPartitions == 0 {
		cfg.LogManager.NumPartitions = 1
	}
	if cfg.LogManager.FlushSchedulerThreadRate == 0 {
		cfg.LogManager.FlushSchedulerThreadRate = 3000
	}
	if cfg.LogManager.DefaultFlushIntervalMs == 0 {
		cfg.LogManager.DefaultFlushIntervalMs = 1000 * 60 // 1 minute
	}
	if cfg.LogManager.LogCleanupIntervalMs == 0 {
		cfg.LogManager.LogCleanupIntervalMs = 1000 * 60 * 5 // 5 minutes
	}
	if cfg.LogManager.LogCleanupDefaultAgeMs == 0 {
		cfg.LogManager.LogCleanupDefaultAgeMs = int64(1000) * 60 * 60 * 24 * 7 // 7 days
	}
	if cfg.LogManager.LogRetentionSize == 0 {
		cfg.LogManager.LogRetentionSize = -1 // unbounded
	}
	if cfg.LogManager.LogFileSize == 0 {
		cfg.LogManager.LogFileSize = 1024 * 1024 * 1024 // 1GB
	}
	if cfg.LogManager.SegmentCodec == "" {
		cfg.LogManager.SegmentCodec = "none"
	}

	if cfg.Registry.TimeoutMs == 0 {
		cfg.Registry.TimeoutMs = 5000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

func validate(cfg *Config) error {
	if cfg.LogManager.LogDir == "" {
		return fmt.Errorf("log_manager.log.dir must not be empty")
	}
	if cfg.LogManager.NumPartitions < 1 {
		return fmt.Errorf("log_manager.num.partitions must be >= 1, got %d", cfg.LogManager.NumPartitions)
	}
	if cfg.LogManager.LogFileSize <= 0 {
		return fmt.Errorf("log_manager.log.file.size must be positive, got %d", cfg.LogManager.LogFileSize)
	}

	validCodecs := map[string]bool{"none": true, "gzip": true, "snappy": true, "lz4": true, "zstd": true}
	if !validCodecs[cfg.LogManager.SegmentCodec] {
		return fmt.Errorf("invalid segment codec: %s", cfg.LogManager.SegmentCodec)
	}

	if cfg.LogManager.EnableZookeeper && cfg.Registry.URL == "" {
		return fmt.Errorf("registry.url is required when log_manager.enable.zookeeper is true")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	return nil
}
