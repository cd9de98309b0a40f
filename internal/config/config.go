package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all process configuration, loaded from the environment
// with sensible defaults (spec's ambient-stack 12-factor config).
type Config struct {
	Server    ServerConfig
	Broker    BrokerConfig
	Collab    CollabConfig
	Cache     CacheConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the master's client-facing HTTP/WebSocket listener.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"9980"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BrokerConfig holds the named-pipe paths for the master↔supervisor
// and worker↔supervisor broker IPC (spec §4.E/§6.3).
type BrokerConfig struct {
	SupervisorToMasterPipe string `envconfig:"BROKER_S2M_PIPE" default:"/tmp/collabbroker.s2m.fifo"`
	MasterToSupervisorPipe string `envconfig:"BROKER_M2S_PIPE" default:"/tmp/collabbroker.m2s.fifo"`
	WorkerPipe             string `envconfig:"BROKER_WORKER_PIPE" default:"/tmp/collabbroker.fifo"`
}

// CollabConfig holds document-collaboration policy knobs.
type CollabConfig struct {
	ViewCallbacksEnabled bool          `envconfig:"COLLAB_VIEW_CALLBACKS" default:"true"`
	IdleTimeout          time.Duration `envconfig:"COLLAB_IDLE_TIMEOUT" default:"2m"`
	JailRoot             string        `envconfig:"COLLAB_JAIL_ROOT" default:"/tmp/collabjail"`
	RendezvousAttempts   int           `envconfig:"COLLAB_RENDEZVOUS_ATTEMPTS" default:"3"`
	RendezvousInterval   time.Duration `envconfig:"COLLAB_RENDEZVOUS_INTERVAL" default:"2s"`
}

// CacheConfig holds the artifact cache's optional disk-backing knobs.
type CacheConfig struct {
	DiskDir       string `envconfig:"CACHE_DISK_DIR" default:""`
	GzipThreshold int    `envconfig:"CACHE_GZIP_THRESHOLD" default:"1024"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds per-IP connect rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from the environment, falling back
// to Default on error.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "9980",
			Host: "0.0.0.0",
		},
		Broker: BrokerConfig{
			SupervisorToMasterPipe: "/tmp/collabbroker.s2m.fifo",
			MasterToSupervisorPipe: "/tmp/collabbroker.m2s.fifo",
			WorkerPipe:             "/tmp/collabbroker.fifo",
		},
		Collab: CollabConfig{
			ViewCallbacksEnabled: true,
			IdleTimeout:          2 * time.Minute,
			JailRoot:             "/tmp/collabjail",
			RendezvousAttempts:   3,
			RendezvousInterval:   2 * time.Second,
		},
		Cache: CacheConfig{
			GzipThreshold: 1024,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
