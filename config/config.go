package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"tupledb/buffer"
	"tupledb/locker"
	"tupledb/optimizer"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration of a database instance.
type Config struct {
	DataDir            string      `yaml:"data_dir"`
	BufferPoolPages    int         `yaml:"buffer_pool_pages"`
	BufferPoolReplacer string      `yaml:"buffer_pool_replacer"`
	LogLevel           string      `yaml:"log_level"`
	Stats              StatsConfig `yaml:"stats"`
	Lock               LockConfig  `yaml:"lock"`
}

// StatsConfig configures table statistics used for cost estimation.
type StatsConfig struct {
	HistogramBuckets int    `yaml:"histogram_buckets"`
	IOCostPerPage    int    `yaml:"io_cost_per_page"`
	SnapshotCodec    string `yaml:"snapshot_codec"`
}

type LockConfig struct {
	DeadlockCheckInterval time.Duration `yaml:"deadlock_check_interval"`
}

func Default() *Config {
	return &Config{
		DataDir:            "./data",
		BufferPoolPages:    50,
		BufferPoolReplacer: "clock",
		LogLevel:           "info",
		Stats: StatsConfig{
			HistogramBuckets: optimizer.DefaultNumBuckets,
			IOCostPerPage:    optimizer.DefaultIOCostPerPage,
			SnapshotCodec:    optimizer.CodecSnappy.String(),
		},
		Lock: LockConfig{
			DeadlockCheckInterval: locker.DefaultDeadlockCheckInterval,
		},
	}
}

// Load reads a YAML file. Keys missing in the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.DataDir == "" {
		problems = append(problems, "data_dir must not be empty")
	}
	if c.BufferPoolPages <= 0 {
		problems = append(problems, "buffer_pool_pages must be positive")
	}
	if _, err := buffer.NewReplacer(c.BufferPoolReplacer, 1); err != nil {
		problems = append(problems, err.Error())
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, "log_level must be one of debug, info, warn, error")
	}
	if c.Stats.HistogramBuckets <= 0 {
		problems = append(problems, "stats.histogram_buckets must be positive")
	}
	if c.Stats.IOCostPerPage < 0 {
		problems = append(problems, "stats.io_cost_per_page must not be negative")
	}
	if _, err := optimizer.ParseCodec(c.Stats.SnapshotCodec); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Lock.DeadlockCheckInterval <= 0 {
		problems = append(problems, "lock.deadlock_check_interval must be positive")
	}

	if len(problems) > 0 {
		return errors.Wrap(ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
