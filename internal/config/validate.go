package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates errors that must stop startup from ones that
// were auto-corrected or are merely suspicious.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

func (r *ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// Validate checks the config. Dangerous zero-values that would cause panics
// are clamped to safe defaults and reported as warnings; only settings that
// cannot be corrected are fatal.
func (c *Config) Validate() ValidationResult {
	var result ValidationResult

	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			result.Fatals = append(result.Fatals, fmt.Errorf("listen_addr %q is not host:port: %w", c.ListenAddr, err))
		}
	}

	if c.Source == "" {
		result.Warnings = append(result.Warnings, fmt.Errorf("source is empty, track creation will fail"))
	}

	// Clamp dimensions to the even, positive range the converter produces.
	if c.TargetWidth < 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("target_width %d is negative, using source width", c.TargetWidth))
		c.TargetWidth = 0
	}
	if c.TargetHeight < 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("target_height %d is negative, using source height", c.TargetHeight))
		c.TargetHeight = 0
	}
	if c.TargetWidth%2 != 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("target_width %d is odd, rounding down", c.TargetWidth))
		c.TargetWidth--
	}
	if c.TargetHeight%2 != 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("target_height %d is odd, rounding down", c.TargetHeight))
		c.TargetHeight--
	}

	if c.MaxFPS < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("max_fps %d is below minimum 1, clamping", c.MaxFPS))
		c.MaxFPS = 1
	} else if c.MaxFPS > 240 {
		result.Warnings = append(result.Warnings, fmt.Errorf("max_fps %d exceeds maximum 240, clamping", c.MaxFPS))
		c.MaxFPS = 240
	}

	if c.MinFPS < 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("min_fps %d is negative, disabling governor", c.MinFPS))
		c.MinFPS = 0
	} else if c.MinFPS > c.MaxFPS {
		result.Warnings = append(result.Warnings, fmt.Errorf("min_fps %d exceeds max_fps %d, clamping", c.MinFPS, c.MaxFPS))
		c.MinFPS = c.MaxFPS
	}

	if c.QueueSize < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("queue_size %d is below minimum 1, clamping", c.QueueSize))
		c.QueueSize = 1
	} else if c.QueueSize > 64 {
		result.Warnings = append(result.Warnings, fmt.Errorf("queue_size %d exceeds maximum 64, clamping", c.QueueSize))
		c.QueueSize = 64
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range result.Warnings {
		slog.Warn("config validation", "error", err)
	}

	return result
}
