package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a hard error if the config is invalid.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	if cfg.Credentials.Port < 1 || cfg.Credentials.Port > 65535 {
		errs = append(errs, fmt.Sprintf("credentials.port: must be between 1 and 65535, got %d", cfg.Credentials.Port))
	} else if cfg.Credentials.Port < 1024 {
		warnings = append(warnings, fmt.Sprintf("credentials.port: %d is a privileged port", cfg.Credentials.Port))
	}

	if d, perr := time.ParseDuration(cfg.Monitor.Interval); perr != nil {
		errs = append(errs, fmt.Sprintf("monitor.interval: %q is not a duration", cfg.Monitor.Interval))
	} else if d < time.Second {
		errs = append(errs, fmt.Sprintf("monitor.interval: must be at least 1s, got %s", d))
	}

	if f := strings.ToLower(cfg.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Sprintf("log_format: unknown format %q (supported: text, json)", cfg.LogFormat))
	}

	if iso := cfg.Windows.Isolation; iso != "" && iso != "process" && iso != "hyperv" {
		errs = append(errs, fmt.Sprintf("windows.isolation: unknown mode %q (supported: process, hyperv)", iso))
	}

	if strings.Contains(cfg.Namespace, ":") && !strings.Contains(cfg.Namespace, "/") {
		warnings = append(warnings, fmt.Sprintf("namespace: %q looks like a registry host without a repository path", cfg.Namespace))
	}

	for i, o := range cfg.Options {
		if strings.TrimSpace(o) == "" || strings.HasPrefix(o, "=") {
			errs = append(errs, fmt.Sprintf("options[%d]: expected key=value, got %q", i, o))
		}
	}
	seen := map[string]bool{}
	for _, ex := range cfg.Exclude {
		if seen[ex] {
			warnings = append(warnings, fmt.Sprintf("exclude: %q listed more than once", ex))
		}
		seen[ex] = true
	}
	if slices.Contains(cfg.Exclude, "") {
		errs = append(errs, "exclude: empty component name")
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return warnings, nil
}

// MonitorInterval returns the parsed monitor interval.
func (c *Config) MonitorInterval() time.Duration {
	d, err := time.ParseDuration(c.Monitor.Interval)
	if err != nil {
		return 0
	}
	return d
}
