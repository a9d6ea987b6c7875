package config

import (
	"strings"
	"time"

	"github.com/objmapper/objmapper/internal/bytesize"
)

// ApplyDefaults fills in zero-valued fields with sensible defaults,
// after a config file or environment variables have been layered on
// top of viper's own zero values.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyAdminDefaults(&cfg.Admin)
	applyTransportDefaults(&cfg.Transport)
	applyBackingDefaults(&cfg.Backing)
	applyLedgerDefaults(&cfg.Ledger)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	for i := range cfg.Backends {
		applyBackendDefaults(&cfg.Backends[i])
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.Kind == "" {
		cfg.Kind = "unix"
	}
	if cfg.Kind == "unix" && cfg.SocketPath == "" {
		cfg.SocketPath = "/run/objmapper/objmapper.sock"
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10
	}
}

func applyBackingDefaults(cfg *BackingConfig) {
	if cfg.CacheLimit == 0 {
		cfg.CacheLimit = bytesize.GiB
	}
}

func applyLedgerDefaults(cfg *LedgerConfig) {
	if cfg.Enabled && cfg.Path == "" {
		cfg.Path = "/var/lib/objmapper/ledger"
	}
}

func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.PerfFactor == 0 {
		cfg.PerfFactor = 1.0
	}
	if cfg.LowWatermark == 0 && cfg.HighWatermark == 0 {
		cfg.LowWatermark = 0.2
		cfg.HighWatermark = 0.8
	}
	if cfg.Type == "network" && cfg.S3 != nil {
		if cfg.S3.Prefix == "" {
			cfg.S3.Prefix = "objects/"
		}
	}
}

// GetDefaultConfig returns a Config with every default applied, used
// when no config file is found and by `objmapperd init` to scaffold a
// starter file.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Backing: BackingConfig{
			Dir:      "/var/lib/objmapper/backing",
			CacheDir: "/var/lib/objmapper/cache",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
