// Copyright 2025 The Jafka Authors.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name       string
		configFile string
		wantErr    bool
		validate   func(*testing.T, *Config)
	}{
		{
			name:       "load with defaults",
			configFile: "",
			wantErr:    false,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/jafka-logs", cfg.LogManager.LogDir)
				assert.Equal(t, 1, cfg.LogManager.NumPartitions)
				assert.Equal(t, int64(-1), cfg.LogManager.LogRetentionSize)
				assert.Equal(t, "info", cfg.Logging.Level)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.configFile)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &Config{
				LogManager: LogManagerConfig{
					LogDir:        "/tmp/jafka",
					NumPartitions: 4,
					LogFileSize:   1024,
					SegmentCodec:  "none",
				},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "invalid num partitions",
			cfg: &Config{
				LogManager: LogManagerConfig{
					LogDir:        "/tmp/jafka",
					NumPartitions: 0,
					LogFileSize:   1024,
					SegmentCodec:  "none",
				},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr: true,
		},
		{
			name: "zookeeper enabled without registry url",
			cfg: &Config{
				LogManager: LogManagerConfig{
					LogDir:          "/tmp/jafka",
					NumPartitions:   1,
					LogFileSize:     1024,
					SegmentCodec:    "none",
					EnableZookeeper: true,
				},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr: true,
		},
		{
			name: "invalid codec",
			cfg: &Config{
				LogManager: LogManagerConfig{
					LogDir:        "/tmp/jafka",
					NumPartitions: 1,
					LogFileSize:   1024,
					SegmentCodec:  "bogus",
				},
				Logging: LoggingConfig{Level: "info"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
