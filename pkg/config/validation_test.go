package config

import (
	"strings"
	"testing"
)

func TestValidateValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config to pass, got: %v", err)
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidateInvalidTransportKind(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Transport.Kind = "quic"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid transport kind")
	}
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Transport.Kind = "tcp"
	cfg.Transport.Port = 70000
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for out-of-range port")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("expected 'max' validation error, got: %v", err)
	}
}

func TestValidateMissingBackingDir(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Backing.Dir = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing backing dir")
	}
}

func TestValidateRejectsInvertedWatermarks(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Backends = []BackendConfig{{
		ID: 5, Type: "ssd", MountPath: "/extra",
		LowWatermark: 0.9, HighWatermark: 0.1,
	}}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for low >= high watermark")
	}
}

func TestValidateRejectsNetworkBackendWithoutS3(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Backends = []BackendConfig{{ID: 5, Type: "network"}}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for network backend missing s3 config")
	}
}

func TestValidateAcceptsNetworkBackendWithS3(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Backends = []BackendConfig{{
		ID: 5, Type: "network",
		S3: &BackendS3Config{Bucket: "my-bucket"},
	}}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid network backend config, got: %v", err)
	}
}
