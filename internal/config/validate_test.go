package config

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateInvalidListenAddrIsFatal(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = "not an address"
	result := cfg.Validate()
	if !result.HasFatals() {
		t.Fatal("invalid listen_addr should be fatal")
	}
	found := false
	for _, err := range result.Fatals {
		if strings.Contains(err.Error(), "listen_addr") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected listen_addr error in fatals")
	}
}

func TestValidateEmptyListenAddrDisablesPreview(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = ""
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("empty listen_addr should not be fatal: %v", result.Fatals)
	}
}

func TestValidateOddDimensionsClampedToEven(t *testing.T) {
	cfg := Default()
	cfg.TargetWidth = 1919
	cfg.TargetHeight = 1081
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("odd dimensions should be warnings, not fatal: %v", result.Fatals)
	}
	if len(result.Warnings) < 2 {
		t.Fatalf("expected warnings for odd dimensions, got %v", result.Warnings)
	}
	if cfg.TargetWidth != 1918 || cfg.TargetHeight != 1080 {
		t.Fatalf("dimensions = %dx%d, want 1918x1080", cfg.TargetWidth, cfg.TargetHeight)
	}
}

func TestValidateNegativeDimensionMeansSourceSize(t *testing.T) {
	cfg := Default()
	cfg.TargetWidth = -640
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("negative dimension should be warning: %v", result.Fatals)
	}
	if cfg.TargetWidth != 0 {
		t.Fatalf("TargetWidth = %d, want 0 (source size)", cfg.TargetWidth)
	}
}

func TestValidateFPSClamping(t *testing.T) {
	cfg := Default()
	cfg.MaxFPS = 0
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("clamped max_fps should be warning: %v", result.Fatals)
	}
	if cfg.MaxFPS != 1 {
		t.Fatalf("MaxFPS = %d, want 1 (clamped)", cfg.MaxFPS)
	}

	cfg = Default()
	cfg.MaxFPS = 1000
	cfg.Validate()
	if cfg.MaxFPS != 240 {
		t.Fatalf("MaxFPS = %d, want 240 (clamped)", cfg.MaxFPS)
	}
}

func TestValidateMinFPSClampedToMaxFPS(t *testing.T) {
	cfg := Default()
	cfg.MaxFPS = 15
	cfg.MinFPS = 30
	cfg.Validate()
	if cfg.MinFPS != 15 {
		t.Fatalf("MinFPS = %d, want 15 (clamped to max)", cfg.MinFPS)
	}
}

func TestValidateQueueSizeClamping(t *testing.T) {
	cfg := Default()
	cfg.QueueSize = 0
	cfg.Validate()
	if cfg.QueueSize != 1 {
		t.Fatalf("QueueSize = %d, want 1", cfg.QueueSize)
	}
}

func TestValidateUnknownLogLevelIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("unknown log level should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for unknown log level")
	}
}

func TestValidateInvalidLogFormatIsWarning(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "xml"
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatal("invalid log format should not be fatal")
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warning for invalid log format")
	}
}

func TestHasFatals(t *testing.T) {
	r := ValidationResult{}
	if r.HasFatals() {
		t.Fatal("HasFatals() on empty result should be false")
	}
	r.Fatals = append(r.Fatals, fmt.Errorf("test error"))
	if !r.HasFatals() {
		t.Fatal("HasFatals() should be true with a fatal error")
	}
}

func TestAllErrorsReturnsBoth(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = "bad" // fatal
	cfg.TargetWidth = 1919 // warning
	result := cfg.Validate()

	all := result.AllErrors()
	if len(all) < 2 {
		t.Fatalf("AllErrors() returned %d errors, expected at least 2", len(all))
	}
}

func TestValidDefaultConfigHasNoErrors(t *testing.T) {
	cfg := Default()
	result := cfg.Validate()
	if result.HasFatals() {
		t.Fatalf("default config has fatals: %v", result.Fatals)
	}
	if len(result.Warnings) > 0 {
		t.Fatalf("default config has warnings: %v", result.Warnings)
	}
}
