package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"rosewatch/internal/engine/ast"
)

type Config struct {
	Version    int        `toml:"version"`
	WatchPaths []string   `toml:"watch_paths"`
	Exclude    Exclude    `toml:"exclude"`
	Watch      Watch      `toml:"watch"`
	Validation Validation `toml:"validation"`
	Graph      Graph      `toml:"graph"`
	DB         Database   `toml:"db"`
	Metrics    Metrics    `toml:"metrics"`
	Tracing    Tracing    `toml:"tracing"`
	Alerts     Alerts     `toml:"alerts"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// RescanRate caps full re-validations per second under event storms.
	RescanRate  float64 `toml:"rescan_rate"`
	RescanBurst int     `toml:"rescan_burst"`
}

type Validation struct {
	Disabled []string          `toml:"disabled"`
	Enabled  []string          `toml:"enabled"`
	Severity map[string]string `toml:"severity"`
}

type Graph struct {
	MaxDepth int `toml:"max_depth"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	ProjectKey  string        `toml:"project_key"`
}

type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type Tracing struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

type Alerts struct {
	Beep     bool  `toml:"beep"`
	Terminal *bool `toml:"terminal"`
}

// TerminalEnabled defaults to true when the key is absent; a TOML bool zero
// value cannot be told apart from a missing key otherwise.
func (a Alerts) TerminalEnabled() bool {
	if a.Terminal == nil {
		return true
	}
	return *a.Terminal
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateValidation(&cfg); err != nil {
		return nil, err
	}
	if err := validateGraph(&cfg); err != nil {
		return nil, err
	}
	if err := validateDatabase(&cfg); err != nil {
		return nil, err
	}
	if err := validateMetrics(&cfg); err != nil {
		return nil, err
	}
	if err := validateTracing(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultConfig returns a config as if loaded from an empty file.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if len(cfg.WatchPaths) == 0 {
		cfg.WatchPaths = []string{"."}
	}

	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".*", "node_modules", "vendor", "target", "build", "dist"}
	}

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RescanRate <= 0 {
		cfg.Watch.RescanRate = 2
	}
	if cfg.Watch.RescanBurst <= 0 {
		cfg.Watch.RescanBurst = 5
	}

	if cfg.Graph.MaxDepth <= 0 {
		cfg.Graph.MaxDepth = 3
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "rosewatch.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}
	if strings.TrimSpace(cfg.DB.ProjectKey) == "" {
		cfg.DB.ProjectKey = "default"
	}

	if strings.TrimSpace(cfg.Metrics.Addr) == "" {
		cfg.Metrics.Addr = "127.0.0.1:9770"
	}
	if strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		cfg.Tracing.Endpoint = "127.0.0.1:4317"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > 1 {
		return fmt.Errorf("unsupported config version %d; only version 1 is supported", cfg.Version)
	}
	return nil
}

func validateValidation(cfg *Config) error {
	for i, id := range cfg.Validation.Disabled {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("validation.disabled[%d] must not be empty", i)
		}
	}
	for i, id := range cfg.Validation.Enabled {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("validation.enabled[%d] must not be empty", i)
		}
	}
	for rule, severity := range cfg.Validation.Severity {
		if strings.TrimSpace(rule) == "" {
			return fmt.Errorf("validation.severity key must not be empty")
		}
		if _, ok := ast.ParseSeverity(severity); !ok {
			return fmt.Errorf("validation.severity.%s: unknown severity %q", rule, severity)
		}
	}
	return nil
}

func validateGraph(cfg *Config) error {
	if cfg.Graph.MaxDepth < 1 || cfg.Graph.MaxDepth > 32 {
		return fmt.Errorf("graph.max_depth must be between 1 and 32, got %d", cfg.Graph.MaxDepth)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Enabled && strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty when db.enabled=true")
	}
	return nil
}

func validateMetrics(cfg *Config) error {
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		return fmt.Errorf("metrics.addr must not be empty when metrics.enabled=true")
	}
	return nil
}

func validateTracing(cfg *Config) error {
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		return fmt.Errorf("tracing.endpoint must not be empty when tracing.enabled=true")
	}
	return nil
}
