// Package config loads engine configuration from the environment and an
// optional YAML profile file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults documented in the README and flag help.
const (
	DefaultServerURL  = "https://sensorgrid.io"
	DefaultTimeoutSec = 30
	DefaultMaxRetries = 3
	DefaultMaxWorkers = 32
	DefaultPartSize   = 100 << 20 // 100 MiB
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Transfer   TransferConfig   `yaml:"transfer"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Storage    StorageConfig    `yaml:"storage"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type ServerConfig struct {
	BaseURL   string `yaml:"base_url"`
	TokenPath string `yaml:"token_path"` // empty = platform default location
}

type TransferConfig struct {
	TimeoutSeconds int   `yaml:"timeout_seconds"`
	MaxRetries     int   `yaml:"max_retries"`
	Workers        int   `yaml:"workers"`
	PartSize       int64 `yaml:"part_size"`
}

type DatasetConfig struct {
	DetectSequences bool   `yaml:"detect_sequences"`
	SensorSuffix    string `yaml:"sensor_suffix"` // default "camera"
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // "local" | "s3" | "gcs"
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	LocalDir    string `yaml:"local_dir"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

type CheckpointConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: DefaultServerURL,
		},
		Transfer: TransferConfig{
			TimeoutSeconds: DefaultTimeoutSec,
			MaxRetries:     DefaultMaxRetries,
			Workers:        DefaultMaxWorkers,
			PartSize:       DefaultPartSize,
		},
		Dataset: DatasetConfig{
			SensorSuffix: "camera",
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "./data",
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
			Dir:     "./checkpoints",
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Address: ":9090",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML profile
// (DATASYNC_CONFIG), and environment overrides, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("DATASYNC_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Transfer.Workers < 1 {
		return cfg, fmt.Errorf("transfer workers must be >= 1, got %d", cfg.Transfer.Workers)
	}
	if cfg.Transfer.PartSize < 1 {
		return cfg, fmt.Errorf("transfer part size must be >= 1, got %d", cfg.Transfer.PartSize)
	}
	return cfg, nil
}

// MustLoad loads the configuration or exits.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("[config] %v", err)
	}
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.Server.BaseURL = getenvDefault("DATASYNC_SERVER", cfg.Server.BaseURL)
	cfg.Server.TokenPath = getenvDefault("DATASYNC_TOKEN_PATH", cfg.Server.TokenPath)

	cfg.Transfer.TimeoutSeconds = getenvInt("DATASYNC_TIMEOUT", cfg.Transfer.TimeoutSeconds)
	cfg.Transfer.MaxRetries = getenvInt("DATASYNC_MAX_RETRIES", cfg.Transfer.MaxRetries)
	cfg.Transfer.Workers = getenvInt("DATASYNC_MAX_WORKERS", cfg.Transfer.Workers)
	cfg.Transfer.PartSize = getenvInt64("DATASYNC_PART_SIZE", cfg.Transfer.PartSize)

	if v := os.Getenv("DATASYNC_DETECT_SEQUENCES"); v != "" {
		cfg.Dataset.DetectSequences = v == "true" || v == "1"
	}
	cfg.Dataset.SensorSuffix = getenvDefault("DATASYNC_SENSOR_SUFFIX", cfg.Dataset.SensorSuffix)

	cfg.Storage.Backend = getenvDefault("DATASYNC_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Bucket = getenvDefault("DATASYNC_STORAGE_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Prefix = getenvDefault("DATASYNC_STORAGE_PREFIX", cfg.Storage.Prefix)
	cfg.Storage.LocalDir = getenvDefault("DATASYNC_LOCAL_DIR", cfg.Storage.LocalDir)
	cfg.Storage.S3Region = getenvDefault("DATASYNC_S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.S3Endpoint = getenvDefault("DATASYNC_S3_ENDPOINT", cfg.Storage.S3Endpoint)
	if v := os.Getenv("DATASYNC_S3_PATH_STYLE"); v != "" {
		cfg.Storage.S3PathStyle = v == "true" || v == "1"
	}

	if v := os.Getenv("DATASYNC_CHECKPOINT"); v != "" {
		cfg.Checkpoint.Enabled = v == "true" || v == "1"
	}
	cfg.Checkpoint.Dir = getenvDefault("DATASYNC_CHECKPOINT_DIR", cfg.Checkpoint.Dir)

	cfg.Logging.Format = getenvDefault("DATASYNC_LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Level = getenvDefault("DATASYNC_LOG_LEVEL", cfg.Logging.Level)

	if v := os.Getenv("DATASYNC_METRICS"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
	cfg.Metrics.Address = getenvDefault("DATASYNC_METRICS_ADDR", cfg.Metrics.Address)
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}
