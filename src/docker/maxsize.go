package docker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
)

// Unbounded is returned by MaxSize when the platform imposes no image size
// limit.
const Unbounded = -1.0

// DaemonConfigPath returns the Windows daemon.json location.
func DaemonConfigPath() string {
	root := os.Getenv("ProgramData")
	if root == "" {
		root = `C:\ProgramData`
	}
	return filepath.Join(root, "Docker", "config", "daemon.json")
}

type daemonConfig struct {
	StorageOpts []string `json:"storage-opts"`
}

// MaxSize reads the Windows container image size limit in GB from
// daemon.json. A missing file or missing size option yields defaultGB.
func MaxSize(path string, defaultGB float64) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaultGB, nil
		}
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg daemonConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, opt := range cfg.StorageOpts {
		k, v, ok := strings.Cut(opt, "=")
		if !ok || strings.TrimSpace(k) != "size" {
			continue
		}
		bytes, err := units.FromHumanSize(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("parsing storage-opts size %q: %w", v, err)
		}
		return float64(bytes) / 1e9, nil
	}
	return defaultGB, nil
}

// SetMaxSize writes a storage-opts size entry into daemon.json, keeping
// every other setting in the file.
func SetMaxSize(path string, gb float64) error {
	settings := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var opts []any
	if existing, ok := settings["storage-opts"].([]any); ok {
		for _, o := range existing {
			if s, ok := o.(string); ok && strings.HasPrefix(strings.TrimSpace(s), "size=") {
				continue
			}
			opts = append(opts, o)
		}
	}
	opts = append(opts, fmt.Sprintf("size=%.0fGB", gb))
	settings["storage-opts"] = opts

	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, append(out, '\n'), 0o644)
}
