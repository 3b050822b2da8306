package build

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/sofmeright/ue4-docker/src/buildconfig"
	"github.com/sofmeright/ue4-docker/src/compat"
	"github.com/sofmeright/ue4-docker/src/probe"
	"github.com/sofmeright/ue4-docker/src/release"
	"github.com/sofmeright/ue4-docker/src/targets"
)

func TestEmbeddedContextsRender(t *testing.T) {
	tables := compat.MustLoad()
	configs := map[string]buildconfig.Input{
		"linux":         {Release: release.Request{Release: "4.27.0"}, Linux: true},
		"linux-secrets": {Release: release.Request{Release: "4.27.0"}, Linux: true, Opts: []string{"credential_mode=secrets"}, Exclude: []string{"ddc", "debug"}},
		"windows":       {Release: release.Request{Release: "4.27.0"}, Toolchain: "2019", Exclude: []string{"templates"}},
	}
	facts := probe.Facts{GOOS: "windows", DaemonVersion: semver.MustParse("20.10.7"), HostBaseTag: "ltsc2019", HostRelease: "1809", MaxSizeGB: 400}

	for name, in := range configs {
		cfg, err := buildconfig.FromInput(in, facts, tables, nil)
		if err != nil {
			t.Fatalf("%s: FromInput: %v", name, err)
		}
		for _, st := range targets.Stages() {
			dest := filepath.Join(t.TempDir(), st.ImageName())
			if err := renderContext(DefaultContexts(), st.ImageName(), cfg.Platform, dest, cfg.TemplateContext(), ""); err != nil {
				t.Errorf("%s/%s: %v", name, st, err)
				continue
			}
			data, err := os.ReadFile(filepath.Join(dest, "Dockerfile"))
			if err != nil {
				t.Fatal(err)
			}
			text := string(data)
			if strings.Contains(text, "<no value>") || strings.Contains(text, "{{") {
				t.Errorf("%s/%s: unrendered template:\n%s", name, st, text)
			}
			if !strings.Contains(text, "com.adamrehn.ue4-docker.sentinel") {
				t.Errorf("%s/%s: missing sentinel label", name, st)
			}
		}
	}
}

func TestEmbeddedContextsHonourOptions(t *testing.T) {
	facts := probe.Facts{GOOS: "linux", DaemonVersion: semver.MustParse("20.10.7"), HostBaseTag: probe.UnknownBaseTag, MaxSizeGB: -1}
	cfg, err := buildconfig.FromInput(buildconfig.Input{
		Release: release.Request{Release: "4.27.0"},
		Exclude: []string{"ddc"},
		Opts:    []string{"disable_labels"},
	}, facts, compat.MustLoad(), nil)
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "ue4-minimal")
	if err := renderContext(DefaultContexts(), "ue4-minimal", cfg.Platform, dest, cfg.TemplateContext(), ""); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dest, "Dockerfile"))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "-set:WithDDC=false") {
		t.Error("ddc exclusion not rendered")
	}
	if strings.Contains(text, "sentinel") {
		t.Error("disable_labels not honoured")
	}
	if !strings.Contains(text, "ARG CHANGELIST") {
		t.Error("changelist not rendered for a .0 release")
	}
}

func TestRenderContextUnknownImage(t *testing.T) {
	err := renderContext(DefaultContexts(), "ue4-nope", buildconfig.Linux, t.TempDir(), nil, "")
	if err == nil {
		t.Fatal("expected error for an unknown image")
	}
}
