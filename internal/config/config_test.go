package config

import (
	"strings"
	"testing"
)

func TestDefaultsPassValidation(t *testing.T) {
	cfg := Defaults()
	cfg.Operator.JWTSecret = "01234567890123456789012345678901"
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Validate(Defaults()) = %v, want nil", err)
	}
}

func TestValidateRejectsShortJWTSecretWhenOperatorEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Operator.Enabled = true
	cfg.Operator.JWTSecret = "too-short"

	if err := Validate(&cfg); err == nil {
		t.Fatal("expected validation error for short jwt_secret")
	}
}

func TestValidateAccumulatesMultipleErrors(t *testing.T) {
	cfg := Defaults()
	cfg.SchemaVersion = "2"
	cfg.Driver.Mode = "bogus"
	cfg.Storage.RetentionDays = 0
	cfg.Operator.JWTSecret = "01234567890123456789012345678901"

	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"schema_version", "driver.mode", "retention_days"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func TestValidateRejectsOutOfRangeSampleRatio(t *testing.T) {
	cfg := Defaults()
	cfg.Operator.JWTSecret = "01234567890123456789012345678901"
	cfg.Observability.TraceSampleRatio = 1.5

	if err := Validate(&cfg); err == nil {
		t.Fatal("expected validation error for trace_sample_ratio > 1.0")
	}
}
