package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TESSLC_SERVER_PORT.
const EnvPrefix = "TESSLC_"

// DefaultDumpFeedPath is appended to the gateway when no dump feed is set.
const DefaultDumpFeedPath = "/momentum_dumps.csv"

type Config struct {
	Server   Server   `yaml:"server" envPrefix:"SERVER_"`
	Archive  Archive  `yaml:"archive" envPrefix:"ARCHIVE_"`
	Storage  Storage  `yaml:"storage" envPrefix:"STORAGE_"`
	Search   Search   `yaml:"search" envPrefix:"SEARCH_"`
	Catalog  Catalog  `yaml:"catalog" envPrefix:"CATALOG_"`
	Session  Session  `yaml:"session" envPrefix:"SESSION_"`
	Timeline Timeline `yaml:"timeline" envPrefix:"TIMELINE_"`
	Pages    Pages    `yaml:"pages" envPrefix:"PAGES_"`
	Logging  Logging  `yaml:"logging" envPrefix:"LOGGING_"`
}

type Server struct {
	Port     int `yaml:"port" env:"PORT"`
	Sessions int `yaml:"sessions" env:"SESSIONS"`
}

type Archive struct {
	Gateway  string `yaml:"gateway" env:"GATEWAY"`
	DumpFeed string `yaml:"dumpFeed" env:"DUMP_FEED"`
	Timeout  string `yaml:"timeout" env:"TIMEOUT"`

	TimeoutDur time.Duration `yaml:"-"`
}

type Storage struct {
	// Path of the leveldb directory; empty keeps everything in memory.
	Path string `yaml:"path" env:"PATH"`
	Max  string `yaml:"max" env:"MAX"`

	MaxBytes int64 `yaml:"-"`
}

type Search struct {
	TTL         string  `yaml:"ttl" env:"TTL"`
	Capacity    int     `yaml:"capacity" env:"CAPACITY"`
	MinExposure float64 `yaml:"minExposure" env:"MIN_EXPOSURE"`

	TTLDur time.Duration `yaml:"-"`
}

type Catalog struct {
	TTL         string  `yaml:"ttl" env:"TTL"`
	Capacity    int     `yaml:"capacity" env:"CAPACITY"`
	Radius      float64 `yaml:"radius" env:"RADIUS"`
	JoinTimeout string  `yaml:"joinTimeout" env:"JOIN_TIMEOUT"`

	TTLDur         time.Duration `yaml:"-"`
	JoinTimeoutDur time.Duration `yaml:"-"`
}

type Session struct {
	TTL      string `yaml:"ttl" env:"TTL"`
	Capacity int    `yaml:"capacity" env:"CAPACITY"`

	TTLDur time.Duration `yaml:"-"`
}

type Timeline struct {
	TTL          string `yaml:"ttl" env:"TTL"`
	RetryAfter   string `yaml:"retryAfter" env:"RETRY_AFTER"`
	RefreshEvery string `yaml:"refreshEvery" env:"REFRESH_EVERY"`

	TTLDur          time.Duration `yaml:"-"`
	RetryAfterDur   time.Duration `yaml:"-"`
	RefreshEveryDur time.Duration `yaml:"-"`
}

type Pages struct {
	Size               int    `yaml:"size" env:"SIZE"`
	Concurrency        int    `yaml:"concurrency" env:"CONCURRENCY"`
	MaterializeTimeout string `yaml:"materializeTimeout" env:"MATERIALIZE_TIMEOUT"`

	MaterializeTimeoutDur time.Duration `yaml:"-"`
}

type Logging struct {
	Debug         bool   `yaml:"debug" env:"DEBUG"`
	LogStatsEvery string `yaml:"logStatsEvery" env:"LOG_STATS_EVERY"`

	LogStatsEveryDur time.Duration `yaml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.Sessions = 1024
	cfg.Archive.Timeout = "60s"
	cfg.Search.TTL = "24h"
	cfg.Search.Capacity = 4096
	cfg.Search.MinExposure = 100
	cfg.Catalog.TTL = "24h"
	cfg.Catalog.Capacity = 200
	cfg.Catalog.Radius = 0.001
	cfg.Catalog.JoinTimeout = "10s"
	cfg.Session.TTL = "24h"
	cfg.Session.Capacity = 64
	cfg.Timeline.TTL = "24h"
	cfg.Timeline.RetryAfter = "10m"
	cfg.Timeline.RefreshEvery = "5m"
	cfg.Pages.Size = 8
	cfg.Pages.Concurrency = 1
	cfg.Pages.MaterializeTimeout = "2m"
	return cfg
}

// LoadConfig reads the YAML file at path over the defaults, applies
// TESSLC_* environment overrides and validates the result. An empty path
// skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.compile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) compile() error {
	cfg.Archive.Gateway = strings.TrimRight(strings.TrimSpace(cfg.Archive.Gateway), "/")
	if cfg.Archive.Gateway == "" {
		return errors.New("archive.gateway is required")
	}
	if strings.TrimSpace(cfg.Archive.DumpFeed) == "" {
		cfg.Archive.DumpFeed = cfg.Archive.Gateway + DefaultDumpFeedPath
	}
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("server.port: invalid port %d", cfg.Server.Port)
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"archive.timeout", cfg.Archive.Timeout, &cfg.Archive.TimeoutDur},
		{"search.ttl", cfg.Search.TTL, &cfg.Search.TTLDur},
		{"catalog.ttl", cfg.Catalog.TTL, &cfg.Catalog.TTLDur},
		{"catalog.joinTimeout", cfg.Catalog.JoinTimeout, &cfg.Catalog.JoinTimeoutDur},
		{"session.ttl", cfg.Session.TTL, &cfg.Session.TTLDur},
		{"timeline.ttl", cfg.Timeline.TTL, &cfg.Timeline.TTLDur},
		{"timeline.retryAfter", cfg.Timeline.RetryAfter, &cfg.Timeline.RetryAfterDur},
		{"timeline.refreshEvery", cfg.Timeline.RefreshEvery, &cfg.Timeline.RefreshEveryDur},
		{"pages.materializeTimeout", cfg.Pages.MaterializeTimeout, &cfg.Pages.MaterializeTimeoutDur},
		{"logging.logStatsEvery", cfg.Logging.LogStatsEvery, &cfg.Logging.LogStatsEveryDur},
	}
	for _, d := range durations {
		if d.raw == "" {
			*d.dst = 0
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if v < 0 {
			return fmt.Errorf("%s: negative duration %s", d.name, v)
		}
		*d.dst = v
	}

	if cfg.Storage.Max != "" {
		n, err := parseBytes(cfg.Storage.Max)
		if err != nil {
			return fmt.Errorf("storage.max: %w", err)
		}
		cfg.Storage.MaxBytes = n
	}
	if cfg.Pages.Size < 0 {
		return fmt.Errorf("pages.size: negative size %d", cfg.Pages.Size)
	}
	return nil
}
