// Package config loads objmapperd's configuration: CLI flags, then
// OBJM_* environment variables, then a YAML file, then built-in
// defaults, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/objmapper/objmapper/internal/bytesize"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is objmapperd's complete static configuration.
//
// Dynamic state — which backends currently hold which objects, hotness
// scores, migration history — lives in the global/per-backend indexes
// and the migration ledger, not here.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// ShutdownTimeout bounds how long the listener loop waits for
	// in-flight sessions to drain before forcing connections closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`

	// Backing configures the required persistent backend and the
	// optional ephemeral cache backend directly from the CLI's
	// backing_dir, cache_dir, and cache_limit flags.
	Backing BackingConfig `mapstructure:"backing" yaml:"backing"`

	// Backends lists additional storage tiers beyond the implicit
	// backing/cache pair — e.g. a second SSD tier or one or more
	// S3-compatible network backends.
	Backends []BackendConfig `mapstructure:"backends" yaml:"backends,omitempty"`

	// Ledger configures the durable migration audit log.
	Ledger LedgerConfig `mapstructure:"ledger" yaml:"ledger"`
}

// LoggingConfig controls internal/logger's slog-backed output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// AdminConfig configures the read-mostly admin HTTP API — separate
// from the object wire protocol listener.
type AdminConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// TransportConfig selects and configures the object protocol listener
// (kind/socket_path/host/port/max_connections).
type TransportConfig struct {
	// Kind is one of "unix", "tcp", "udp".
	Kind string `mapstructure:"kind" validate:"required,oneof=unix tcp udp" yaml:"kind"`

	// SocketPath is used when Kind is "unix".
	SocketPath string `mapstructure:"socket_path" yaml:"socket_path,omitempty"`

	// Host/Port are used when Kind is "tcp" or "udp".
	Host string `mapstructure:"host" yaml:"host,omitempty"`
	Port int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`

	MaxConnections int `mapstructure:"max_connections" validate:"omitempty,gt=0" yaml:"max_connections"`
}

// BackingConfig covers the required persistent backend and the
// optional ephemeral cache backend, the two storage tiers every
// deployment needs regardless of how many extra BackendConfig entries
// it adds.
type BackingConfig struct {
	// Dir is the root of the default persistent backend. Required.
	Dir string `mapstructure:"dir" validate:"required" yaml:"dir"`

	// CacheDir, if set, roots an ephemeral memory-tier backend used for
	// hot-object promotion. Optional: caching is disabled without it.
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir,omitempty"`

	// CacheLimit bounds the cache backend's capacity.
	CacheLimit bytesize.ByteSize `mapstructure:"cache_limit" yaml:"cache_limit"`
}

// BackendConfig describes one additional storage tier: a local disk
// tier or an S3-compatible network tier.
type BackendConfig struct {
	ID         int               `mapstructure:"id" validate:"required" yaml:"id"`
	Type       string            `mapstructure:"type" validate:"required,oneof=memory nvme ssd hdd network" yaml:"type"`
	MountPath  string            `mapstructure:"mount_path" yaml:"mount_path,omitempty"`
	Capacity   bytesize.ByteSize `mapstructure:"capacity" yaml:"capacity"`
	PerfFactor float64           `mapstructure:"perf_factor" validate:"omitempty,gt=0" yaml:"perf_factor,omitempty"`

	EphemeralOnly bool `mapstructure:"ephemeral_only" yaml:"ephemeral_only,omitempty"`
	Persistent    bool `mapstructure:"persistent" yaml:"persistent,omitempty"`
	MigrationSrc  bool `mapstructure:"migration_src" yaml:"migration_src,omitempty"`
	MigrationDst  bool `mapstructure:"migration_dst" yaml:"migration_dst,omitempty"`
	ReadOnly      bool `mapstructure:"read_only" yaml:"read_only,omitempty"`

	LowWatermark  float64 `mapstructure:"low_watermark" validate:"omitempty,gte=0,lte=1" yaml:"low_watermark,omitempty"`
	HighWatermark float64 `mapstructure:"high_watermark" validate:"omitempty,gte=0,lte=1" yaml:"high_watermark,omitempty"`

	// S3 configures a "network" type backend. Required when Type is
	// "network", ignored otherwise.
	S3 *BackendS3Config `mapstructure:"s3" yaml:"s3,omitempty"`
}

// BackendS3Config configures one S3-compatible network backend
// instance.
type BackendS3Config struct {
	Bucket         string `mapstructure:"bucket" validate:"required" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Prefix         string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// LedgerConfig configures the durable migration audit log (backed by
// BadgerDB).
type LedgerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
}

// Load reads configuration from file, environment, and defaults, in
// that precedence order (lowest to highest: defaults, file, env).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration, returning an operator-facing error with
// remediation instructions if no config file is found.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Initialize one first:\n  objmapperd init\n\n"+
				"Or specify a custom config file:\n  objmapperd start --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories as
// needed. The file is written with owner-only permissions since it may
// later carry S3 credentials via environment-variable references.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("OBJM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook lets config files use human-readable sizes like
// "1GiB" or "512MB" for any bytesize.ByteSize field.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook lets config files use human-readable durations
// like "30s" or "5m" for any time.Duration field.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/objmapper, falling back to
// ~/.config/objmapper, or "." if the home directory can't be resolved.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "objmapper")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "objmapper")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir exposes the configuration directory for the init
// command.
func GetConfigDir() string {
	return getConfigDir()
}
