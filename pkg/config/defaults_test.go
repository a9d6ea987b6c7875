package config

import "testing"

func TestApplyDefaultsFillsLogging(t *testing.T) {
	cfg := &Config{Backing: BackingConfig{Dir: "/data"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Level = %q, want INFO", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Format = %q, want text", cfg.Logging.Format)
	}
}

func TestApplyDefaultsNormalizesLogLevelCase(t *testing.T) {
	cfg := &Config{Backing: BackingConfig{Dir: "/data"}, Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Level = %q, want DEBUG", cfg.Logging.Level)
	}
}

func TestApplyDefaultsLeavesExplicitValuesAlone(t *testing.T) {
	cfg := &Config{
		Backing:   BackingConfig{Dir: "/data"},
		Transport: TransportConfig{Kind: "tcp", Port: 4000, MaxConnections: 50},
	}
	ApplyDefaults(cfg)
	if cfg.Transport.Kind != "tcp" || cfg.Transport.Port != 4000 || cfg.Transport.MaxConnections != 50 {
		t.Fatalf("explicit transport config was overwritten: %+v", cfg.Transport)
	}
}

func TestApplyDefaultsSetsUnixSocketPath(t *testing.T) {
	cfg := &Config{Backing: BackingConfig{Dir: "/data"}}
	ApplyDefaults(cfg)
	if cfg.Transport.SocketPath == "" {
		t.Fatal("expected a default socket path for unix transport")
	}
}

func TestApplyDefaultsSetsCacheLimit(t *testing.T) {
	cfg := &Config{Backing: BackingConfig{Dir: "/data"}}
	ApplyDefaults(cfg)
	if cfg.Backing.CacheLimit == 0 {
		t.Fatal("expected a non-zero default cache limit")
	}
}

func TestApplyDefaultsFillsBackendWatermarks(t *testing.T) {
	cfg := &Config{
		Backing:  BackingConfig{Dir: "/data"},
		Backends: []BackendConfig{{ID: 5, Type: "ssd", MountPath: "/extra"}},
	}
	ApplyDefaults(cfg)
	bc := cfg.Backends[0]
	if bc.LowWatermark != 0.2 || bc.HighWatermark != 0.8 {
		t.Fatalf("unexpected default watermarks: %+v", bc)
	}
	if bc.PerfFactor != 1.0 {
		t.Fatalf("PerfFactor = %v, want 1.0", bc.PerfFactor)
	}
}

func TestGetDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
