package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/obinnaokechukwu/cblgo"
	"github.com/obinnaokechukwu/cblgo/leakcheck"
	"github.com/obinnaokechukwu/cblgo/memlite"
	"github.com/obinnaokechukwu/cblgo/native"
)

// Backends
const (
	BackendMemlite   = "memlite"
	BackendLibCBLite = "libcblite"
)

// Environment overrides
const (
	EnvBackend = "CBLGO_BACKEND"
	EnvLibDir  = "CBLGO_LIB_DIR"
)

// DefaultConfigFile is looked up in the working directory when --config is
// not given.
const DefaultConfigFile = "cblaudit.yaml"

// Config is the cblaudit configuration file.
type Config struct {
	Backend    string         `yaml:"backend"`
	Directory  string         `yaml:"directory"`
	LibraryDir string         `yaml:"library_dir,omitempty"`
	LogLevel   string         `yaml:"log_level"`
	Storage    string         `yaml:"storage"`
	Settle     SettleConfig   `yaml:"settle"`
	Scenario   ScenarioConfig `yaml:"scenario"`
}

// SettleConfig controls re-sampling before a leak is reported.
type SettleConfig struct {
	Retries  int           `yaml:"retries"`
	Interval time.Duration `yaml:"interval"`
}

// ScenarioConfig tunes the audited scenario.
type ScenarioConfig struct {
	Documents int `yaml:"documents"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:   BackendMemlite,
		Directory: filepath.Join(os.TempDir(), "cblaudit"),
		LogLevel:  "warn",
		Storage:   "memory",
		Settle:    SettleConfig{Retries: 0, Interval: 50 * time.Millisecond},
		Scenario:  ScenarioConfig{Documents: 1},
	}
}

// LoadConfig reads path over the defaults and applies environment overrides.
// A missing default config file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvLibDir); v != "" {
		c.LibraryDir = v
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(c.Backend)
	switch c.Backend {
	case BackendMemlite, BackendLibCBLite:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendMemlite, BackendLibCBLite)
	}
	if _, err := c.storageKind(); err != nil {
		return err
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Settle.Retries < 0 {
		return fmt.Errorf("settle.retries must not be negative")
	}
	if c.Scenario.Documents < 1 {
		c.Scenario.Documents = 1
	}
	return nil
}

func (c *Config) storageKind() (memlite.StorageKind, error) {
	switch strings.ToLower(c.Storage) {
	case "", "memory":
		return memlite.StorageInMemory, nil
	case "bolt":
		return memlite.StorageBolt, nil
	default:
		return 0, fmt.Errorf("unknown storage %q (want memory or bolt)", c.Storage)
	}
}

// auditOptions returns the leakcheck options the config asks for.
func (c *Config) auditOptions(log *zap.Logger) []leakcheck.Option {
	opts := []leakcheck.Option{leakcheck.WithLogger(log)}
	if c.Settle.Retries > 0 {
		opts = append(opts, leakcheck.WithSettle(c.Settle.Retries, c.Settle.Interval))
	}
	return opts
}

// newLogger builds a console logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = lvl
	zc.DisableStacktrace = true
	return zc.Build()
}

// openBackend installs and returns the configured native library.
func openBackend(cfg *Config, log *zap.Logger) (native.Library, error) {
	switch cfg.Backend {
	case BackendLibCBLite:
		if cfg.LibraryDir != "" {
			if err := os.Setenv(EnvLibDir, cfg.LibraryDir); err != nil {
				return nil, err
			}
		}
		if err := cblgo.Init(); err != nil {
			return nil, err
		}
		if err := cblgo.ForwardNativeLogs(cblgo.LogWarning); err != nil {
			log.Debug("native log forwarding unavailable", zap.Error(err))
		}
		return cblgo.Library()
	default:
		storage, err := cfg.storageKind()
		if err != nil {
			return nil, err
		}
		lib := memlite.New(
			memlite.WithStorage(storage),
			memlite.WithDefaultDirectory(cfg.Directory),
			memlite.WithLogger(log.Named("memlite")),
		)
		cblgo.UseLibrary(lib)
		return lib, nil
	}
}
