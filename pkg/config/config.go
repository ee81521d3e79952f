package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"mutcompact/pkg/dberrors"
	"mutcompact/pkg/schema"
)

// Config is the root of the configuration file.
// yaml and validate tags drive parsing and validation.
type Config struct {
	Logger     LoggerConfig     `yaml:"logger" validate:"required"`
	Memtable   MemtableConfig   `yaml:"memtable" validate:"required"`
	Compaction CompactionConfig `yaml:"compaction" validate:"required"`
	Query      QueryConfig      `yaml:"query" validate:"required"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	JSON  bool   `yaml:"json"`
}

type MemtableConfig struct {
	FlushThresholdBytes int `yaml:"flush_threshold" validate:"required,min=1"`
	FlushChanBuffSize   int `yaml:"flush_chan_buff_size" validate:"required,min=1"`
}

type CompactionConfig struct {
	// TombstoneGCMode is one of timeout, immediate or disabled.
	TombstoneGCMode string        `yaml:"tombstone_gc_mode" validate:"oneof=timeout immediate disabled"`
	GCGracePeriod   time.Duration `yaml:"gc_grace_period" validate:"min=0"`
}

type QueryConfig struct {
	RowLimit          uint64 `yaml:"row_limit" validate:"required,min=1"`
	PartitionLimit    uint32 `yaml:"partition_limit" validate:"required,min=1"`
	PartitionRowLimit uint64 `yaml:"partition_row_limit"`
	PageSize          uint64 `yaml:"page_size" validate:"required,min=1"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "INFO",
			JSON:  false,
		},
		Memtable: MemtableConfig{
			FlushThresholdBytes: 1 << 20,
			FlushChanBuffSize:   3,
		},
		Compaction: CompactionConfig{
			TombstoneGCMode: "timeout",
			GCGracePeriod:   schema.DefaultGracePeriod,
		},
		Query: QueryConfig{
			RowLimit:       10_000,
			PartitionLimit: 1_000,
			PageSize:       100,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "mutcompact",
		},
	}
}

// Load reads a YAML config on top of Default. A missing file is not an
// error, the defaults are used then.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("config file not found, using default config", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", dberrors.ErrInvalidArgument, field, fmt.Sprintf(format, args...)))
	}

	switch strings.ToUpper(c.Logger.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		invalid("logger.level", "unknown level %q", c.Logger.Level)
	}
	if c.Memtable.FlushThresholdBytes < 1 {
		invalid("memtable.flush_threshold", "must be positive")
	}
	if c.Memtable.FlushChanBuffSize < 1 {
		invalid("memtable.flush_chan_buff_size", "must be positive")
	}
	if _, err := schema.ParseTombstoneGCMode(c.Compaction.TombstoneGCMode); err != nil {
		errs = append(errs, fmt.Errorf("compaction.tombstone_gc_mode: %w", err))
	}
	if c.Compaction.GCGracePeriod < 0 {
		invalid("compaction.gc_grace_period", "must not be negative")
	}
	if c.Query.RowLimit == 0 {
		invalid("query.row_limit", "must be positive")
	}
	if c.Query.PartitionLimit == 0 {
		invalid("query.partition_limit", "must be positive")
	}
	if c.Query.PageSize == 0 {
		invalid("query.page_size", "must be positive")
	}

	return errors.Join(errs...)
}

// TombstoneGC converts the compaction section into table options.
func (c CompactionConfig) TombstoneGC() schema.TombstoneGCOptions {
	mode, _ := schema.ParseTombstoneGCMode(c.TombstoneGCMode)
	return schema.TombstoneGCOptions{Mode: mode, GracePeriod: c.GCGracePeriod}
}

// SlogLevel maps the logger level to slog.
func (c LoggerConfig) SlogLevel() slog.Level {
	switch strings.ToUpper(c.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
