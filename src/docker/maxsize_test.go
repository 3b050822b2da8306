package docker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeDaemonJSON(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "daemon.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write daemon.json: %v", err)
	}
	return path
}

func TestMaxSize(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
	}{
		{"size set", `{"storage-opts": ["size=400GB"]}`, 400},
		{"other opts", `{"storage-opts": ["lcow.kernel=foo", "size = 120GB"]}`, 120},
		{"no storage opts", `{"debug": true}`, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MaxSize(writeDaemonJSON(t, tt.content), 20)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("MaxSize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaxSizeMissingFile(t *testing.T) {
	got, err := MaxSize(filepath.Join(t.TempDir(), "nope.json"), 20)
	if err != nil || got != 20 {
		t.Fatalf("MaxSize() = %v, %v", got, err)
	}
}

func TestMaxSizeMalformed(t *testing.T) {
	if _, err := MaxSize(writeDaemonJSON(t, `{"storage-opts": ["size=lots"]}`), 20); err == nil {
		t.Error("expected error for malformed size")
	}
	if _, err := MaxSize(writeDaemonJSON(t, `{`), 20); err == nil {
		t.Error("expected error for malformed json")
	}
}

func TestSetMaxSize(t *testing.T) {
	path := writeDaemonJSON(t, `{"debug": true, "storage-opts": ["size=20GB", "other=1"]}`)

	if err := SetMaxSize(path, 400); err != nil {
		t.Fatal(err)
	}

	got, err := MaxSize(path, 20)
	if err != nil || got != 400 {
		t.Fatalf("MaxSize after set = %v, %v", got, err)
	}

	data, _ := os.ReadFile(path)
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		t.Fatal(err)
	}
	if settings["debug"] != true {
		t.Error("existing settings were dropped")
	}
	opts := settings["storage-opts"].([]any)
	if len(opts) != 2 || opts[0] != "other=1" || opts[1] != "size=400GB" {
		t.Errorf("storage-opts = %v", opts)
	}
}

func TestSetMaxSizeCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "daemon.json")
	if err := SetMaxSize(path, 400); err != nil {
		t.Fatal(err)
	}
	if got, _ := MaxSize(path, 20); got != 400 {
		t.Errorf("MaxSize = %v", got)
	}
}
