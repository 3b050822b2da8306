// Package config loads optional user defaults for ue4-docker from
// .ue4-docker.yml or .ue4-docker.toml and the UE4DOCKER_* environment.
// Command line flags always take precedence over both.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "UE4DOCKER_"
	// EnvConfigFile names the config file explicitly.
	EnvConfigFile = EnvPrefix + "CONFIG"
)

// DefaultFiles are tried in order when no config file is named.
var DefaultFiles = []string{".ue4-docker.yml", ".ue4-docker.yaml", ".ue4-docker.toml"}

// Config is the top-level ue4-docker configuration.
type Config struct {
	// Namespace qualifies built image names.
	Namespace string `yaml:"namespace" toml:"namespace" env:"TAG_NAMESPACE"`
	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format" toml:"log_format" env:"LOG_FORMAT"`

	Credentials CredentialConfig `yaml:"credentials" toml:"credentials"`
	Monitor     MonitorConfig    `yaml:"monitor" toml:"monitor"`
	Windows     WindowsConfig    `yaml:"windows" toml:"windows"`
	Linux       LinuxConfig      `yaml:"linux" toml:"linux"`

	// Exclude lists components excluded from every build.
	Exclude []string `yaml:"exclude" toml:"exclude" env:"EXCLUDE" envSeparator:","`
	// Options are advanced key=value options applied before --opt flags.
	Options []string `yaml:"options" toml:"options"`
}

// CredentialConfig configures the credential endpoint.
type CredentialConfig struct {
	Port int `yaml:"port" toml:"port" env:"CREDENTIAL_PORT"`
}

// MonitorConfig configures the resource monitor.
type MonitorConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled" env:"MONITOR"`
	Interval string `yaml:"interval" toml:"interval" env:"MONITOR_INTERVAL"`
}

// WindowsConfig holds Windows container defaults.
type WindowsConfig struct {
	Isolation    string `yaml:"isolation" toml:"isolation" env:"ISOLATION"`
	Memory       string `yaml:"memory" toml:"memory" env:"MEMORY"`
	VisualStudio string `yaml:"visual_studio" toml:"visual_studio" env:"VISUAL_STUDIO"`
}

// LinuxConfig holds Linux container defaults.
type LinuxConfig struct {
	BaseTag string `yaml:"basetag" toml:"basetag" env:"LINUX_BASETAG"`
	CUDA    string `yaml:"cuda" toml:"cuda" env:"CUDA"`
}

// Load reads configuration from path and overlays the process environment.
// If path is empty, UE4DOCKER_CONFIG and then DefaultFiles are tried.
// Returns sensible defaults if no file exists.
func Load(path string) (*Config, error) {
	return LoadEnv(path, os.Environ())
}

// LoadEnv is Load with an explicit environment.
func LoadEnv(path string, environ []string) (*Config, error) {
	vars := env.ToMap(environ)
	explicit := path != ""
	if !explicit {
		if p := vars[EnvConfigFile]; p != "" {
			path, explicit = p, true
		}
	}

	cfg := defaults()
	switch {
	case explicit:
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	default:
		for _, candidate := range DefaultFiles {
			err := decodeFile(candidate, cfg)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			break
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: vars}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		LogFormat: "text",
		Credentials: CredentialConfig{
			Port: 9876,
		},
		Monitor: MonitorConfig{
			Interval: "20s",
		},
	}
}
