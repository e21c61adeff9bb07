// Copyright 2025 The Jafka Authors.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jafka-project/jafka/internal/logmgr"
	"github.com/jafka-project/jafka/internal/logstore"
	"github.com/jafka-project/jafka/internal/registryclient"
	"github.com/jafka-project/jafka/pkg/compression"
	"github.com/jafka-project/jafka/pkg/config"
	"github.com/jafka-project/jafka/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	configPath string
)

func main() {
	root := &cobra.Command{
		Use:   "jafka",
		Short: "jafka is the log manager core of a partitioned message log broker",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/jafka.yaml", "path to configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("jafka version %s (commit: %s, built: %s)\n", version, commit, buildTime)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "run the log manager until a shutdown signal is received",
		RunE:  serve,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.SetDefault(log)

	log.Info("starting jafka", "version", version, "commit", commit, "build_time", buildTime)
	log.Info("loaded configuration",
		"log_dir", cfg.LogManager.LogDir,
		"num_partitions", cfg.LogManager.NumPartitions,
		"enable_zookeeper", cfg.LogManager.EnableZookeeper,
	)

	metricsReg := prometheus.NewRegistry()
	metrics := logmgr.NewMetrics(metricsReg)

	codec, err := parseCodec(cfg.LogManager.SegmentCodec)
	if err != nil {
		return err
	}

	var mgr *logmgr.Manager
	factory := logstore.NewFactory(codec, cfg.LogManager.LogFileSize, func() logmgr.RollingStrategy {
		return mgr.RollingStrategy()
	}, cfg.LogManager.FlushInterval)

	var regClient logmgr.RegistryClient = registryclient.Noop{}
	if cfg.LogManager.EnableZookeeper {
		regClient = registryclient.NewHTTPClient(registryclient.HTTPClientConfig{
			BaseURL:  cfg.Registry.URL,
			BrokerID: cfg.Registry.BrokerID,
			Timeout:  time.Duration(cfg.Registry.TimeoutMs) * time.Millisecond,
		})
	}

	zapLogger, err := buildZapLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build zap logger: %w", err)
	}

	mgr = logmgr.NewManager(toManagerConfig(cfg), factory,
		logmgr.WithLogger(zapLogger),
		logmgr.WithMetrics(metrics),
		logmgr.WithRegistryClient(regClient),
	)

	if err := mgr.Load(); err != nil {
		return fmt.Errorf("load log manager: %w", err)
	}
	if err := mgr.Startup(); err != nil {
		return fmt.Errorf("start log manager: %w", err)
	}
	log.Info("log manager started", "topics", mgr.AllTopics())

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		log.Info("started metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down jafka")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop metrics server", "error", err)
		}
	}

	if err := mgr.Close(); err != nil {
		log.Error("failed to close log manager", "error", err)
	}

	log.Info("jafka stopped")
	return nil
}

func toManagerConfig(cfg *config.Config) logmgr.Config {
	lm := cfg.LogManager

	retentionHoursMap := make(map[string]int64, len(lm.LogRetentionHoursMap))
	for topic, hours := range lm.LogRetentionHoursMap {
		retentionHoursMap[topic] = int64(hours) * 3_600_000
	}
	flushIntervalMap := make(map[string]int64, len(lm.FlushIntervalMap))
	for topic, ms := range lm.FlushIntervalMap {
		flushIntervalMap[topic] = int64(ms)
	}

	return logmgr.Config{
		LogDir:                   lm.LogDir,
		NumPartitions:            lm.NumPartitions,
		TopicPartitionsMap:       lm.TopicPartitionsMap,
		FlushSchedulerThreadRate: time.Duration(lm.FlushSchedulerThreadRate) * time.Millisecond,
		DefaultFlushIntervalMs:   lm.DefaultFlushIntervalMs,
		FlushIntervalMap:         flushIntervalMap,
		FlushIntervalMessages:    lm.FlushInterval,
		LogCleanupIntervalMs:     time.Duration(lm.LogCleanupIntervalMs) * time.Millisecond,
		LogCleanupDefaultAgeMs:   lm.LogCleanupDefaultAgeMs,
		LogRetentionHoursMap:     retentionHoursMap,
		LogRetentionSize:         lm.LogRetentionSize,
		LogFileSize:              lm.LogFileSize,
		EnableZookeeper:          lm.EnableZookeeper,
	}
}

func parseCodec(name string) (compression.Type, error) {
	switch name {
	case "", "none":
		return compression.None, nil
	case "gzip":
		return compression.GZIP, nil
	case "snappy":
		return compression.Snappy, nil
	case "lz4":
		return compression.LZ4, nil
	case "zstd":
		return compression.ZSTD, nil
	default:
		return compression.None, fmt.Errorf("unsupported segment codec: %s", name)
	}
}
