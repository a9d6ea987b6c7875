package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateBackendConfig, BackendConfig{})
	return v
}

// validateBackendConfig enforces the watermark ordering invariant
// (low < high) that struct tags alone
// can't express, and requires S3 config on network-type backends.
func validateBackendConfig(sl validator.StructLevel) {
	b := sl.Current().Interface().(BackendConfig)

	if b.LowWatermark != 0 || b.HighWatermark != 0 {
		if b.LowWatermark >= b.HighWatermark {
			sl.ReportError(b.HighWatermark, "HighWatermark", "HighWatermark", "gtfield", "LowWatermark")
		}
	}

	if b.Type == "network" && b.S3 == nil {
		sl.ReportError(b.S3, "S3", "S3", "required_if", "Type network")
	}
}

// Validate runs struct-tag and cross-field validation over cfg. Called
// after ApplyDefaults, so zero values that are about to be rejected
// have already been filled in.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
