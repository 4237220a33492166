package decryptfs

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by LoadConfig. LISTEN_ON keeps the name
// deployments already use.
const (
	EnvListenOn    = "LISTEN_ON"
	EnvRoot        = "DECRYPTFS_ROOT"
	EnvMetricsAddr = "DECRYPTFS_METRICS_ADDR"
	EnvLogLevel    = "DECRYPTFS_LOG_LEVEL"
	EnvKDFWorkers  = "DECRYPTFS_KDF_WORKERS"
	EnvChunkSize   = "DECRYPTFS_CHUNK_SIZE"
)

// LoadConfig builds a Config from defaults, then the YAML file at path (if
// path is not empty), then environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvListenOn); ok {
		c.ListenOn = v
	}
	if v, ok := lookup(EnvRoot); ok && v != "" {
		c.Root = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvKDFWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return NewValidationError(EnvKDFWorkers, v, "must be an integer")
		}
		c.KDF.MaxWorkers = n
	}
	if v, ok := lookup(EnvChunkSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return NewValidationError(EnvChunkSize, v, "must be an integer")
		}
		c.ChunkSize = n
	}
	return nil
}
