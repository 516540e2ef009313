package config

import (
	"time"

	"github.com/dmitrijs2005/splitsync/internal/client/syncer"
)

// Config holds runtime settings for the splitsync CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DatabasePath: file of the local SQLite replica.
//   - BatchSize, PushWorkers, CallTimeout: push tuning of the sync engine.
//   - LogLevel: debug, info, warn or error.
//   - MetricsAddr: if set, sync metrics are served there at /metrics.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DatabasePath        string
	BatchSize           int
	PushWorkers         int
	CallTimeout         time.Duration
	LogLevel            string
	MetricsAddr         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "splitsync.db"
	c.BatchSize = syncer.DefaultBatchSize
	c.PushWorkers = syncer.DefaultWorkers
	c.CallTimeout = syncer.DefaultCallTimeout
	c.LogLevel = "info"
}

// SyncOptions returns the manager options derived from c.
func (c *Config) SyncOptions() syncer.Options {
	return syncer.Options{
		BatchSize:   c.BatchSize,
		Workers:     c.PushWorkers,
		CallTimeout: c.CallTimeout,
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
